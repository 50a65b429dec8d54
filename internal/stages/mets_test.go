package stages

import (
	"context"
	"testing"

	"github.com/hathitrust/feed/internal/pkgtype"
	"github.com/hathitrust/feed/internal/premis"
)

func TestMETSStageFailsWhenAssemblyInputsAreMissing(t *testing.T) {
	old := MetsCatalog
	MetsCatalog = premis.NewCatalog(nil)
	defer func() { MetsCatalog = old }()

	dir := t.TempDir()
	v := newTestVolume(t, dir, &pkgtype.Descriptor{Identifier: "yale"})

	s := &METS{}
	s.Volume = v
	ok, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned err: %v", err)
	}
	if ok {
		t.Fatalf("Run() = true, want false when the SIP has no source METS to assemble from")
	}
	if s.Error() == nil {
		t.Fatalf("Error() = nil, want assembly failure recorded")
	}
}
