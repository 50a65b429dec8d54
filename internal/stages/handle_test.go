package stages

import (
	"context"
	"os/exec"
	"testing"

	"github.com/hathitrust/feed/internal/pkgtype"
)

func TestHandleNoOpWhenMinterPathUnset(t *testing.T) {
	old := HandleMinterPath
	HandleMinterPath = ""
	defer func() { HandleMinterPath = old }()

	dir := t.TempDir()
	v := newTestVolume(t, dir, &pkgtype.Descriptor{Identifier: "yale"})

	s := &Handle{}
	s.Volume = v
	ok, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned err: %v", err)
	}
	if !ok {
		t.Fatalf("Run() = false (%v), want true when no minter is configured", s.Error())
	}
}

func TestHandleSucceedsWhenMinterExitsZero(t *testing.T) {
	old := HandleMinterPath
	HandleMinterPath = "/usr/bin/true"
	defer func() { HandleMinterPath = old }()

	dir := t.TempDir()
	v := newTestVolume(t, dir, &pkgtype.Descriptor{Identifier: "yale"})

	s := &Handle{ExecCommand: func(name string, args ...string) *exec.Cmd {
		return exec.Command("true")
	}}
	s.Volume = v
	ok, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned err: %v", err)
	}
	if !ok {
		t.Fatalf("Run() = false (%v), want true", s.Error())
	}
}

func TestHandleFailsWhenMinterExitsNonzero(t *testing.T) {
	old := HandleMinterPath
	HandleMinterPath = "/usr/bin/false"
	defer func() { HandleMinterPath = old }()

	dir := t.TempDir()
	v := newTestVolume(t, dir, &pkgtype.Descriptor{Identifier: "yale"})

	s := &Handle{ExecCommand: func(name string, args ...string) *exec.Cmd {
		return exec.Command("false")
	}}
	s.Volume = v
	ok, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned err: %v", err)
	}
	if ok {
		t.Fatalf("Run() = true, want false when the minter exits nonzero")
	}
}
