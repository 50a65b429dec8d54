// Package volume implements the Volume runtime object: the mutable,
// per-ingest handle onto one item's SIP/AIP state. It owns every lazily
// cached view onto the filesystem and source/repository METS described in
// spec.md §4.E, and the stable content-addressed PREMIS UUID derivation.
package volume

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/google/uuid"

	"github.com/hathitrust/feed/internal/config"
	"github.com/hathitrust/feed/internal/ingesterr"
	"github.com/hathitrust/feed/internal/namespace"
	"github.com/hathitrust/feed/internal/pairtree"
	"github.com/hathitrust/feed/internal/pkgtype"
	"github.com/hathitrust/feed/internal/premis"
)

// htNamespaceUUID is the fixed namespace UUID under which every PREMIS
// event identifier and every other content-addressed UUID in the
// repository is derived via UUIDv5.
var htNamespaceUUID = uuid.MustParse("09A5DAD6-3484-11E0-9D45-077BD5215A96")

// sequenceSuffix matches the trailing numeric page sequence a filename
// must carry, e.g. "39002X_000001.jp2" -> "000001".
var sequenceSuffix = regexp.MustCompile(`(\d+)\.[^.]+$`)

// FileGroup is one materialized logical group of a SIP's files (image,
// ocr, hocr, pdf, epub, ...), computed by partitioning AllDirectoryFiles
// against the package type's FileGroupSpec patterns.
type FileGroup struct {
	Name  string
	Spec  pkgtype.FileGroupSpec
	Files []string
}

// EventStore is the persistence boundary a Volume records PREMIS events
// through. It is implemented by internal/data/repos.PremisEventRepo in
// production and by a hand-written fake in tests.
type EventStore interface {
	Record(ctx context.Context, namespace, objid, eventtypeID string, eventUUID uuid.UUID, date time.Time, outcomeXML string) error
	Get(ctx context.Context, namespace, objid, eventtypeID string) (eventUUID uuid.UUID, date time.Time, outcomeXML string, found bool, err error)
	Clear(ctx context.Context, namespace, objid string) error
}

// Fetcher is the optional object-storage boundary behind staging.fetch
// when a package type downloads its SIP from GCS instead of finding it
// already on local disk. Implemented by internal/platform/gcp.Fetcher in
// production; nil when every package type in use stages locally.
type Fetcher interface {
	FetchSIP(ctx context.Context, gsURI, destDir string) error
	Delete(ctx context.Context, gsURI string) error
}

// Volume is the runtime object for one item being ingested.
type Volume struct {
	NS      *namespace.Descriptor
	PT      *pkgtype.Descriptor
	Resolver *config.Resolver
	Catalog  *premis.Catalog
	Events   EventStore
	Fetcher  Fetcher

	namespaceID string
	objid       string

	// Now defaults to time.Now when nil; overridable in tests for
	// deterministic PREMIS timestamps.
	Now func() time.Time

	mu              sync.Mutex
	dirFiles        []string
	dirFilesLoaded  bool
	fileGroups      map[string]FileGroup
	fileGroupsLoaded bool
	sourceXPC       *xmlquery.Node
	sourceXPCLoaded bool
	reposXPC        *xmlquery.Node
	reposXPCLoaded  bool
	checksums       map[string]string
	checksumsLoaded bool
}

func New(ns *namespace.Descriptor, pt *pkgtype.Descriptor, resolver *config.Resolver, catalog *premis.Catalog, events EventStore, namespaceID, objid string) *Volume {
	return &Volume{
		NS:          ns,
		PT:          pt,
		Resolver:    resolver,
		Catalog:     catalog,
		Events:      events,
		namespaceID: namespaceID,
		objid:       objid,
		Now:         time.Now,
	}
}

func (v *Volume) Identifier() string     { return v.namespaceID + "." + v.objid }
func (v *Volume) NamespaceID() string    { return v.namespaceID }
func (v *Volume) ObjID() string          { return v.objid }
func (v *Volume) PtObjID() string        { return pairtree.Encode(v.objid) }
func (v *Volume) PackageType() *pkgtype.Descriptor { return v.PT }

func (v *Volume) configString(key, def string) string {
	if v.Resolver == nil {
		return def
	}
	val, ok := v.Resolver.Get(v.NS, v.PT, key)
	if !ok {
		return def
	}
	s, ok := val.(string)
	if !ok {
		return def
	}
	return s
}

func (v *Volume) StagingDirectory() string {
	root := v.configString("staging.preingest", "/tmp/staging")
	return filepath.Join(root, v.namespaceID, v.objid)
}

func (v *Volume) DownloadDirectory() string {
	root := v.configString("staging.download", "/tmp/download")
	return filepath.Join(root, v.namespaceID)
}

// EnsureSIPDownloaded pulls the SIP into DownloadDirectory via Fetcher
// when the package type does not download_to_disk on its own and
// staging.fetch names a GCS bucket URI. It is a no-op for package types
// that expect the SIP already staged locally, or when no Fetcher is
// configured.
func (v *Volume) EnsureSIPDownloaded(ctx context.Context) error {
	if v.PT.DownloadToDisk || v.Fetcher == nil {
		return nil
	}
	fetchURI := v.configString("staging.fetch", "")
	if !strings.HasPrefix(fetchURI, "gs://") {
		return nil
	}
	if err := v.Fetcher.FetchSIP(ctx, fetchURI, v.DownloadDirectory()); err != nil {
		return ingesterr.OperationFailedf("gcs_fetch_sip", fetchURI, err)
	}
	return nil
}

func (v *Volume) PreingestDirectory() string {
	return v.StagingDirectory()
}

func (v *Volume) METSPath() string {
	return filepath.Join(v.StagingDirectory(), v.PtObjID()+".mets.xml")
}

func (v *Volume) ZipPath() string {
	return filepath.Join(v.StagingDirectory(), v.PtObjID()+".zip")
}

func (v *Volume) SIPFilename() string {
	return v.PT.SIPFilename(v.objid)
}

// AllDirectoryFiles returns the sorted list of the SIP's current files,
// cached after first read.
func (v *Volume) AllDirectoryFiles() ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.dirFilesLoaded {
		return v.dirFiles, nil
	}
	dir := v.StagingDirectory()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ingesterr.OperationFailedf("read_dir", dir, err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	v.dirFiles = files
	v.dirFilesLoaded = true
	return v.dirFiles, nil
}

// FileGroups partitions the directory files by each filegroup's
// file_pattern, computed and cached on first call.
func (v *Volume) FileGroups() (map[string]FileGroup, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fileGroupsLoaded {
		return v.fileGroups, nil
	}
	files, err := v.unsafeAllDirectoryFiles()
	if err != nil {
		return nil, err
	}
	groups := make(map[string]FileGroup, len(v.PT.FileGroups))
	for name, spec := range v.PT.FileGroups {
		fg := FileGroup{Name: name, Spec: spec}
		for _, f := range files {
			if spec.FilePattern != nil && spec.FilePattern.MatchString(f) {
				fg.Files = append(fg.Files, f)
			}
		}
		groups[name] = fg
	}
	v.fileGroups = groups
	v.fileGroupsLoaded = true
	return groups, nil
}

// unsafeAllDirectoryFiles assumes v.mu is already held.
func (v *Volume) unsafeAllDirectoryFiles() ([]string, error) {
	if v.dirFilesLoaded {
		return v.dirFiles, nil
	}
	dir := v.StagingDirectory()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ingesterr.OperationFailedf("read_dir", dir, err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	v.dirFiles = files
	v.dirFilesLoaded = true
	return v.dirFiles, nil
}

func (v *Volume) AllContentFiles() ([]string, error) {
	return v.filteredGroupFiles(func(s pkgtype.FileGroupSpec) bool { return s.Content })
}

func (v *Volume) JHOVEFiles() ([]string, error) {
	return v.filteredGroupFiles(func(s pkgtype.FileGroupSpec) bool { return s.JHOVE })
}

func (v *Volume) UTF8Files() ([]string, error) {
	return v.filteredGroupFiles(func(s pkgtype.FileGroupSpec) bool { return s.UTF8 })
}

func (v *Volume) filteredGroupFiles(keep func(pkgtype.FileGroupSpec) bool) ([]string, error) {
	groups, err := v.FileGroups()
	if err != nil {
		return nil, err
	}
	var out []string
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		g := groups[name]
		if keep(g.Spec) {
			out = append(out, g.Files...)
		}
	}
	return out, nil
}

// FileCount is |content_files|.
func (v *Volume) FileCount() (int, error) {
	files, err := v.AllContentFiles()
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

// PageCount is |image filegroup|; fails with MissingImageGroup if no image
// filegroup is configured for this package type.
func (v *Volume) PageCount() (int, error) {
	if _, ok := v.PT.FileGroups["image"]; !ok {
		return 0, ingesterr.New(ingesterr.Kind("MissingImageGroup"), fmt.Errorf("package type %s has no image filegroup", v.PT.Identifier), nil)
	}
	groups, err := v.FileGroups()
	if err != nil {
		return 0, err
	}
	img, ok := groups["image"]
	if !ok {
		return 0, ingesterr.New(ingesterr.Kind("MissingImageGroup"), fmt.Errorf("package type %s has no image filegroup", v.PT.Identifier), nil)
	}
	return len(img.Files), nil
}

// FileGroupsByPage groups every file by its trailing numeric sequence
// number, nested under the logical group it belongs to. A filename
// without a trailing numeric sequence fails with BadField(sequence_number).
func (v *Volume) FileGroupsByPage() (map[int]map[string][]string, error) {
	groups, err := v.FileGroups()
	if err != nil {
		return nil, err
	}
	byPage := make(map[int]map[string][]string)
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		g := groups[name]
		for _, f := range g.Files {
			m := sequenceSuffix.FindStringSubmatch(f)
			if m == nil {
				return nil, ingesterr.BadFieldf("sequence_number", f, nil)
			}
			seq, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, ingesterr.BadFieldf("sequence_number", f, m[1])
			}
			if byPage[seq] == nil {
				byPage[seq] = make(map[string][]string)
			}
			byPage[seq][name] = append(byPage[seq][name], f)
		}
	}
	return byPage, nil
}

// SourceMETSXPC parses the SIP's source METS file on first use.
func (v *Volume) SourceMETSXPC() (*xmlquery.Node, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.sourceXPCLoaded {
		return v.sourceXPC, nil
	}
	path, err := v.sourceMETSPathLocked()
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, ingesterr.OperationFailedf("open_source_mets", path, err)
	}
	defer f.Close()
	doc, err := xmlquery.Parse(f)
	if err != nil {
		return nil, ingesterr.New(ingesterr.InvalidMETS, err, map[string]any{"file": path})
	}
	v.sourceXPC = doc
	v.sourceXPCLoaded = true
	return doc, nil
}

func (v *Volume) sourceMETSPathLocked() (string, error) {
	files, err := v.unsafeAllDirectoryFiles()
	if err != nil {
		return "", err
	}
	var matches []string
	for _, f := range files {
		if v.PT.SourceMETSFile != nil && v.PT.SourceMETSFile.MatchString(f) {
			matches = append(matches, f)
		}
	}
	if len(matches) != 1 {
		return "", ingesterr.BadFieldf("source_mets_file", strings.Join(files, ","), matches)
	}
	return filepath.Join(v.StagingDirectory(), matches[0]), nil
}

// ReposMETSXPC parses the repository's existing METS for this object, if
// any. It returns (nil, nil) when the object is not yet in the
// repository — that is not an error, just "not a reingest".
func (v *Volume) ReposMETSXPC() (*xmlquery.Node, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.reposXPCLoaded {
		return v.reposXPC, nil
	}
	path := v.RepositoryMETSPath()
	if path == "" {
		v.reposXPCLoaded = true
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		v.reposXPCLoaded = true
		return nil, nil
	}
	defer f.Close()
	doc, err := xmlquery.Parse(f)
	if err != nil {
		return nil, ingesterr.New(ingesterr.InvalidRepositoryPREMIS, err, map[string]any{"file": path})
	}
	v.reposXPC = doc
	v.reposXPCLoaded = true
	return doc, nil
}

// ObjDir/LinkDir are read straight from the resolver; they are process
// tunables rather than namespace/packagetype-scoped, but the resolver's
// global fallback layer serves them uniformly with everything else.
func (v *Volume) objDir() string  { return v.configString("dataset.obj_dir", "/obj_dir") }
func (v *Volume) linkDir() string { return v.configString("dataset.link_dir", v.objDir()) }

func (v *Volume) RepositoryObjectDir() string {
	return pairtree.ObjectDir(filepath.Join(v.objDir(), v.namespaceID), v.objid)
}

// LinkObjectDir returns the mirrored symlink path for this object when
// link_dir differs from obj_dir, or "" when they're the same (no mirror
// tree is configured).
func (v *Volume) LinkObjectDir() string {
	if v.linkDir() == v.objDir() {
		return ""
	}
	return pairtree.ObjectDir(filepath.Join(v.linkDir(), v.namespaceID), v.objid)
}

func (v *Volume) RepositoryMETSPath() string {
	dir := v.RepositoryObjectDir()
	path := filepath.Join(dir, v.PtObjID()+".mets.xml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func (v *Volume) RepositoryZipPath() string {
	dir := v.RepositoryObjectDir()
	path := filepath.Join(dir, v.PtObjID()+".zip")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func (v *Volume) RepositorySymlink() string {
	if v.linkDir() == v.objDir() {
		return ""
	}
	dir := pairtree.ObjectDir(filepath.Join(v.linkDir(), v.namespaceID), v.objid)
	if _, err := os.Lstat(dir); err != nil {
		return ""
	}
	return dir
}

// MARCXML locates //dmdSec/mdWrap[@MDTYPE="MARC"]/xmlData's first element
// child in the source METS; fails with MissingField("marc") if absent.
func (v *Volume) MARCXML() (*xmlquery.Node, error) {
	doc, err := v.SourceMETSXPC()
	if err != nil {
		return nil, err
	}
	nodes := xmlquery.Find(doc, `//*[local-name()='dmdSec']/*[local-name()='mdWrap' and @MDTYPE='MARC']/*[local-name()='xmlData']`)
	for _, wrap := range nodes {
		for child := wrap.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == xmlquery.ElementNode {
				return child, nil
			}
		}
	}
	return nil, ingesterr.MissingFieldf("marc", v.METSPath())
}

// Checksums reads the checksum_file if the SIP carries one, else extracts
// //file/@CHECKSUM + FLocat/@xlink:href pairs from the source METS.
func (v *Volume) Checksums() (map[string]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.checksumsLoaded {
		return v.checksums, nil
	}
	files, err := v.unsafeAllDirectoryFiles()
	if err != nil {
		return nil, err
	}
	if v.PT.ChecksumFile != nil {
		for _, f := range files {
			if v.PT.ChecksumFile.MatchString(f) {
				sums, err := v.readChecksumFile(filepath.Join(v.StagingDirectory(), f))
				if err != nil {
					return nil, err
				}
				v.checksums = sums
				v.checksumsLoaded = true
				return sums, nil
			}
		}
	}
	doc, err := v.sourceMETSXPCLocked()
	if err != nil {
		return nil, err
	}
	sums := map[string]string{}
	for _, fileNode := range xmlquery.Find(doc, `//*[local-name()='file']`) {
		checksum := fileNode.SelectAttr("CHECKSUM")
		if checksum == "" {
			continue
		}
		loc := xmlquery.FindOne(fileNode, `.//*[local-name()='FLocat']`)
		if loc == nil {
			continue
		}
		href := loc.SelectAttr("xlink:href")
		if href == "" {
			href = loc.SelectAttr("href")
		}
		if href != "" {
			sums[href] = checksum
		}
	}
	v.checksums = sums
	v.checksumsLoaded = true
	return sums, nil
}

func (v *Volume) sourceMETSXPCLocked() (*xmlquery.Node, error) {
	if v.sourceXPCLoaded {
		return v.sourceXPC, nil
	}
	path, err := v.sourceMETSPathLocked()
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, ingesterr.OperationFailedf("open_source_mets", path, err)
	}
	defer f.Close()
	doc, err := xmlquery.Parse(f)
	if err != nil {
		return nil, ingesterr.New(ingesterr.InvalidMETS, err, map[string]any{"file": path})
	}
	v.sourceXPC = doc
	v.sourceXPCLoaded = true
	return doc, nil
}

func (v *Volume) readChecksumFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ingesterr.OperationFailedf("read_checksum_file", path, err)
	}
	out := map[string]string{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) != 2 {
			continue
		}
		out[parts[1]] = parts[0]
	}
	return out, nil
}

// ComputeMD5 computes the md5 checksum of one file in the SIP, used when a
// file has no entry from Checksums() and must be computed fresh.
func (v *Volume) ComputeMD5(filename string) (string, error) {
	path := filepath.Join(v.StagingDirectory(), filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", ingesterr.OperationFailedf("md5", path, err)
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

// Stages walks the package type's stage map starting at startStatus,
// chasing each stage's declared success_state, and returns the ordered
// list of stage identifiers visited. It stops at the first status with no
// stage_map entry (a terminal / release state).
func (v *Volume) Stages(startStatus string, successStateOf func(stageID string) (string, bool)) []string {
	status := startStatus
	seen := map[string]bool{}
	var out []string
	for {
		stageID, ok := v.PT.StageFor(status)
		if !ok {
			break
		}
		if seen[status] {
			break
		}
		seen[status] = true
		out = append(out, stageID)
		next, ok := successStateOf(stageID)
		if !ok {
			break
		}
		status = next
	}
	return out
}

// MakePREMISUUID computes the deterministic UUIDv5 PREMIS event
// identifier for this volume: UUIDv5(HT_NS, namespace + "-" + objid +
// "-" + eventtype + "-" + date). Two calls with identical arguments yield
// identical UUIDs; calls differing in any argument yield different ones.
func (v *Volume) MakePREMISUUID(eventtype string, date time.Time) uuid.UUID {
	name := fmt.Sprintf("%s-%s-%s-%s", v.namespaceID, v.objid, eventtype, date.UTC().Format(time.RFC3339))
	return uuid.NewSHA1(htNamespaceUUID, []byte(name))
}

// RecordPREMISEvent computes eventtype from the catalog, derives the
// stable UUID, and idempotently REPLACEs a row keyed by
// (namespace, objid, eventtype). date defaults to Now() and outcome to
// empty when zero-valued.
func (v *Volume) RecordPREMISEvent(ctx context.Context, eventCode string, date time.Time, outcomeXML string) error {
	entry, ok := v.Catalog.Lookup(eventCode)
	if !ok {
		return ingesterr.UnknownSubclassf("PREMISEventCode", eventCode)
	}
	if date.IsZero() {
		date = v.now()
	}
	id := v.MakePREMISUUID(entry.Type, date)
	return v.Events.Record(ctx, v.namespaceID, v.objid, entry.Type, id, date, outcomeXML)
}

// ClearPREMISEvents removes every recorded PREMIS event row for this
// Volume, used by Collate's clean_success once the events have been
// folded into the collated METS and no longer need to live in
// premis_events.
func (v *Volume) ClearPREMISEvents(ctx context.Context) error {
	return v.Events.Clear(ctx, v.namespaceID, v.objid)
}

// GetEventInfo returns the recorded (eventid, date, outcome_xml) for a
// previously-recorded event code, or found=false if none exists.
func (v *Volume) GetEventInfo(ctx context.Context, eventCode string) (eventID uuid.UUID, date time.Time, outcomeXML string, found bool, err error) {
	entry, ok := v.Catalog.Lookup(eventCode)
	if !ok {
		return uuid.Nil, time.Time{}, "", false, ingesterr.UnknownSubclassf("PREMISEventCode", eventCode)
	}
	return v.Events.Get(ctx, v.namespaceID, v.objid, entry.Type)
}

// Artist resolves the "VOLUME_ARTIST" executor sentinel used by
// premis_overrides: the agent credited for an event when it's the content
// provider rather than a fixed system executor.
func (v *Volume) Artist() string {
	return v.configString("artist", v.namespaceID)
}

func (v *Volume) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// CleanAll removes the staging directory, the staged METS, and the staged
// zip. Errors removing files that are already gone are ignored.
func (v *Volume) CleanAll() error {
	if err := os.RemoveAll(v.StagingDirectory()); err != nil {
		return ingesterr.OperationFailedf("clean_all", v.StagingDirectory(), err)
	}
	return nil
}
