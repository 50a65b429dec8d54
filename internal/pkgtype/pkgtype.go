// Package pkgtype defines the PackageType descriptor: one immutable record
// per content-provider SIP format (Google, Internet Archive, Yale, MPub,
// EPUB, ...). Descriptors are plain data plus small pure helpers, replacing
// the source's subclass-per-format hierarchy (see SPEC_FULL.md's design
// notes on descriptor composition).
package pkgtype

import (
	"fmt"
	"regexp"

	"github.com/hathitrust/feed/internal/registry"
)

// Registry holds every PackageType descriptor the process knows about,
// populated by each package type's defining package at init() time (per
// SPEC_FULL.md §4.A — no reflective directory scan).
var Registry = registry.New[*Descriptor]("PackageType")

// Register adds d to Registry under d.Identifier.
func Register(d *Descriptor) { Registry.Register(d.Identifier, d) }

// FileGroupSpec describes one logical file group within a SIP (image, ocr,
// hocr, pdf, epub, ...).
type FileGroupSpec struct {
	Prefix      string
	METSUse     string
	FilePattern *regexp.Regexp
	Required    bool
	Content     bool
	JHOVE       bool
	UTF8        bool
	StructMap   bool
}

// PREMISOverride customizes how one event code is recorded for a package
// type: the human-readable detail, the executing agent/tool list, the
// PREMIS event type string, and an optional fixed event-id override.
type PREMISOverride struct {
	Detail        string
	Executor      string
	Tools         []string
	Type          string
	EventIDOverride string
}

// Descriptor is the immutable PackageType record. All fields are
// populated once at load time and never mutated afterward.
type Descriptor struct {
	Identifier  string
	Description string
	VolumeModule string

	ValidFilePattern *regexp.Regexp
	FileGroups       map[string]FileGroupSpec
	SourceMETSFile   *regexp.Regexp
	ChecksumFile     *regexp.Regexp

	// StageMap maps a Job status to the identifier of the Stage that
	// should run next. An empty map, or a status with no entry, means
	// the Job is not runnable from that status.
	StageMap map[string]string

	// Validation maps a validator identifier to parameter overrides
	// (free-form, interpreted by the validator implementation).
	Validation map[string]map[string]any

	// Config holds package-type-scoped settings consulted by the resolver's
	// layer 3 (between a namespace's config and the global file), e.g. a
	// package type's own staging or validator defaults.
	Config map[string]any

	PREMISEvents               []string
	SourcePREMISEvents         []string
	SourcePREMISEventsExtract  []string
	PREMISOverrides            map[string]PREMISOverride

	SIPFilenamePattern     string
	UncompressedExtensions map[string]bool
	AllowSequenceGaps      bool
	UsePreingest           bool
	DownloadToDisk         bool
}

// Validate checks the cross-field invariants named by spec: every
// stage_map value must resolve against the supplied known-stage set,
// every filegroup key must be unique (guaranteed by the map type itself),
// and every referenced event code must appear in the known-event set.
func (d *Descriptor) Validate(knownStages map[string]bool, knownEvents map[string]bool) []error {
	var errs []error
	for status, stageID := range d.StageMap {
		if !knownStages[stageID] {
			errs = append(errs, &validationErr{"stage_map[" + status + "]", stageID})
		}
	}
	for _, code := range allEventCodes(d) {
		if !knownEvents[code] {
			errs = append(errs, &validationErr{"event code", code})
		}
	}
	return errs
}

func allEventCodes(d *Descriptor) []string {
	var out []string
	out = append(out, d.PREMISEvents...)
	out = append(out, d.SourcePREMISEvents...)
	out = append(out, d.SourcePREMISEventsExtract...)
	for code := range d.PREMISOverrides {
		out = append(out, code)
	}
	return out
}

type validationErr struct {
	what  string
	value string
}

func (e *validationErr) Error() string {
	return e.what + " references unknown " + e.value
}

// SIPFilename renders SIP_filename_pattern for an objid. The pattern is a
// printf-style template with a single %s verb, matching the source's
// "printf-style template resolving to the SIP filename" semantics.
func (d *Descriptor) SIPFilename(objid string) string {
	return fmt.Sprintf(d.SIPFilenamePattern, objid)
}

// StageFor returns the stage identifier for status, and whether one is
// configured. An empty stage_map[status] means the Job is not runnable.
func (d *Descriptor) StageFor(status string) (string, bool) {
	id, ok := d.StageMap[status]
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
