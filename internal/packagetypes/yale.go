// Package packagetypes registers the concrete PackageType descriptors this
// binary knows how to ingest. Each descriptor is built and registered at
// init() time, the way the source's package-type configuration would be
// loaded once at startup — see SPEC_FULL.md §4.B/4.C.
package packagetypes

import (
	"regexp"

	"github.com/hathitrust/feed/internal/pkgtype"
)

func init() {
	pkgtype.Register(Yale())
}

// Yale is the package type exercised by spec.md's end-to-end scenario 1:
// a zip containing a source METS (Yale_<objid>.xml), one page of
// image+ocr+hocr content, named <objid>_<seq>.<ext>.
func Yale() *pkgtype.Descriptor {
	return &pkgtype.Descriptor{
		Identifier:       "yale",
		Description:      "Yale University Library digitized volumes",
		VolumeModule:     "generic",
		ValidFilePattern: regexp.MustCompile(`^(Yale_[^.]+\.xml|\d+_\d+\.(jp2|txt|xml))$`),
		SourceMETSFile:   regexp.MustCompile(`^Yale_[^.]+\.xml$`),
		ChecksumFile:     regexp.MustCompile(`^checksum\.md5$`),

		FileGroups: map[string]pkgtype.FileGroupSpec{
			"image": {
				Prefix:      "image",
				METSUse:     "image",
				FilePattern: regexp.MustCompile(`^\d+_(\d+)\.jp2$`),
				Required:    true,
				Content:     true,
				JHOVE:       true,
				StructMap:   true,
			},
			"ocr": {
				Prefix:      "ocr",
				METSUse:     "ocr",
				FilePattern: regexp.MustCompile(`^\d+_(\d+)\.txt$`),
				Required:    true,
				Content:     true,
				UTF8:        true,
				StructMap:   true,
			},
			"hocr": {
				Prefix:      "hocr",
				METSUse:     "coordOCR",
				FilePattern: regexp.MustCompile(`^\d+_(\d+)\.xml$`),
				Required:    false,
				Content:     true,
				UTF8:        true,
				StructMap:   true,
			},
		},

		StageMap: map[string]string{
			"ready":                  "unpack",
			"unpacked":               "verify_manifest",
			"manifest_verified":      "extract_ocr",
			"ocr_extracted":          "image_remediate",
			"image_remediated":       "source_mets",
			"source_mets_generated":  "volume_validator",
			"validated":              "pack",
			"packed":                 "mets",
			"mets_generated":         "handle",
			"handle_assigned":        "collate",
		},

		Validation: map[string]map[string]any{
			"jhove": {"profile": "JPEG2000-hul"},
		},

		PREMISEvents:              []string{"ingestion", "zip_compression", "zip_md5_create", "package_validation"},
		SourcePREMISEvents:        []string{"capture"},
		SourcePREMISEventsExtract: []string{"message digest calculation"},

		SIPFilenamePattern:     "yale.%s.zip",
		UncompressedExtensions: map[string]bool{"jp2": true},
		UsePreingest:           false,
		DownloadToDisk:         false,
	}
}
