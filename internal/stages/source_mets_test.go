package stages

import (
	"context"
	"regexp"
	"testing"

	"github.com/hathitrust/feed/internal/pkgtype"
)

const sourceMETSWithMARCAndChecksums = `<mets>
  <dmdSec ID="DMD1">
    <mdWrap MDTYPE="MARC">
      <xmlData>
        <record><leader>00000cam</leader></record>
      </xmlData>
    </mdWrap>
  </dmdSec>
  <fileSec>
    <fileGrp>
      <file CHECKSUM="abc123">
        <FLocat xlink:href="39002X_000001.jp2"/>
      </file>
    </fileGrp>
  </fileSec>
</mets>`

func sourceMETSPackageType() *pkgtype.Descriptor {
	return &pkgtype.Descriptor{
		Identifier:     "yale",
		SourceMETSFile: regexp.MustCompile(`\.mets\.xml$`),
	}
}

func TestSourceMETSSucceedsWhenMARCAndChecksumsPresent(t *testing.T) {
	dir := t.TempDir()
	v := newTestVolume(t, dir, sourceMETSPackageType())
	writeFile(t, v.StagingDirectory()+"/39002X.mets.xml", sourceMETSWithMARCAndChecksums)

	s := &SourceMETS{}
	s.Volume = v
	ok, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned err: %v", err)
	}
	if !ok {
		t.Fatalf("Run() = false (%v), want true", s.Error())
	}
}

func TestSourceMETSFailsWhenMARCMissing(t *testing.T) {
	dir := t.TempDir()
	v := newTestVolume(t, dir, sourceMETSPackageType())
	writeFile(t, v.StagingDirectory()+"/39002X.mets.xml", "<mets><fileSec/></mets>")

	s := &SourceMETS{}
	s.Volume = v
	ok, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned err: %v", err)
	}
	if ok {
		t.Fatalf("Run() = true, want false without a MARC dmdSec")
	}
}
