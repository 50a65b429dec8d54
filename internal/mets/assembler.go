package mets

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/antchfx/xmlquery"

	"github.com/hathitrust/feed/internal/ingesterr"
	"github.com/hathitrust/feed/internal/premis"
	"github.com/hathitrust/feed/internal/volume"
)

const metsNS = "http://www.loc.gov/METS/"

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

var eventIdentifierPattern = regexp.MustCompile(`^([A-Za-z_]+?)(\d+)$`)

type oldEvent struct {
	eventType string
	date      time.Time
	node      *xmlquery.Node
}

// Assembler produces the canonical AIP METS document for a Volume.
type Assembler struct {
	Catalog *premis.Catalog

	// XercesPath is the external XML validator invoked in step 13. A
	// zero value skips validation (used in tests).
	XercesPath string
	ExecCommand func(name string, arg ...string) *exec.Cmd

	Now func() time.Time
}

func (a *Assembler) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Assemble runs the 13-step algorithm and returns the completed document
// and an error that is always an *ingesterr.Error on failure.
func (a *Assembler) Assemble(ctx context.Context, v *volume.Volume) (*Document, error) {
	pt := v.PackageType()

	doc := &Document{
		XMLNSMets:  metsNS,
		XMLNSXlink: "http://www.w3.org/1999/xlink",
		OBJID:      v.Identifier(),
	}

	// Step 3: header.
	doc.Header = Header{
		CreateDate:   a.now().UTC().Format(time.RFC3339),
		RecordStatus: "NEW",
		Agent:        Agent{Role: "CREATOR", Type: "ORGANIZATION", Name: "DLPS"},
	}

	// Step 4: dmdSecs.
	marc, err := v.MARCXML()
	if err != nil {
		return nil, asErr(err)
	}
	doc.DmdSecs = []DmdSec{
		{ID: "DMD1", MdWrap: MdWrap{MDType: "MARC", XmlData: RawXMLBlock{Inner: fmt.Sprintf(`<item>%s</item>`, v.Identifier())}}},
		{ID: "DMD2", MdWrap: MdWrap{MDType: "MARC", XmlData: RawXMLBlock{Inner: marc.OutputXML(true)}}},
	}

	// Step 5: extract old PREMIS from the repository METS, if any.
	eventids := map[string]int{}
	repoMaxDate := map[string]time.Time{}
	var reemit []PremisEvent

	reposDoc, err := v.ReposMETSXPC()
	if err != nil {
		return nil, asErr(err)
	}
	if reposDoc != nil {
		for _, node := range xmlquery.Find(reposDoc, `//*[local-name()='event']`) {
			evType := xmlquery.FindOne(node, `./*[local-name()='eventType']`)
			evIDVal := xmlquery.FindOne(node, `./*[local-name()='eventIdentifier']/*[local-name()='eventIdentifierValue']`)
			if evType == nil || evType.InnerText() == "" || evIDVal == nil || evIDVal.InnerText() == "" {
				return nil, ingesterr.New(ingesterr.InvalidRepositoryPREMIS, fmt.Errorf("event missing eventType or eventIdentifierValue"), nil)
			}
			t := evType.InnerText()
			m := eventIdentifierPattern.FindStringSubmatch(evIDVal.InnerText())
			if m != nil {
				n, _ := strconv.Atoi(m[2])
				if n > eventids[t] {
					eventids[t] = n
				}
			}
			dateNode := xmlquery.FindOne(node, `./*[local-name()='eventDateTime']`)
			var date time.Time
			if dateNode != nil {
				date, _ = time.Parse(time.RFC3339, dateNode.InnerText())
			}
			if date.After(repoMaxDate[t]) {
				repoMaxDate[t] = date
			}
			reemit = append(reemit, premisEventFromNode(node))
		}
	}

	// Step 6: extract source PREMIS grouped by eventType.
	sourceDoc, err := v.SourceMETSXPC()
	if err != nil {
		return nil, asErr(err)
	}
	sourceByType := map[string][]oldEvent{}
	for _, node := range xmlquery.Find(sourceDoc, `//*[local-name()='event']`) {
		evType := xmlquery.FindOne(node, `./*[local-name()='eventType']`)
		if evType == nil {
			continue
		}
		t := evType.InnerText()
		dateNode := xmlquery.FindOne(node, `./*[local-name()='eventDateTime']`)
		var date time.Time
		if dateNode != nil {
			date, _ = time.Parse(time.RFC3339, dateNode.InnerText())
		}
		sourceByType[t] = append(sourceByType[t], oldEvent{eventType: t, date: date, node: node})
	}

	// Step 7: emit source events not already represented in the
	// repository copy at an equal-or-newer datetime.
	var emitted []PremisEvent
	for _, t := range pt.SourcePREMISEvents {
		events, ok := sourceByType[t]
		if !ok {
			continue
		}
		for _, ev := range events {
			if !needToUpdateEvent(t, ev.date, repoMaxDate) {
				continue
			}
			idNodes := xmlquery.Find(ev.node, `./*[local-name()='eventIdentifier']`)
			if len(idNodes) != 1 {
				return nil, ingesterr.New(ingesterr.InvalidSourcePREMIS, fmt.Errorf("event %s: expected exactly one eventIdentifier, got %d", t, len(idNodes)), nil)
			}
			eventids[t]++
			newID := fmt.Sprintf("%s%d", t, eventids[t])
			pe := premisEventFromNode(ev.node)
			pe.EventIdentifier = PremisEventIdentifier{EventIdentifierType: "UM", EventIdentifierValue: newID}
			emitted = append(emitted, pe)
		}
	}

	// Step 8: emit generated events.
	for _, code := range pt.PREMISEvents {
		_, date, outcomeXML, found, err := v.GetEventInfo(ctx, code)
		if err != nil {
			return nil, asErr(err)
		}
		if !found || date.IsZero() {
			return nil, ingesterr.New(ingesterr.InvalidMETS, fmt.Errorf("event %s: missing date", code), nil)
		}
		cfg, ok := premis.GetEventConfiguration(a.Catalog, pt, nil, code)
		if !ok {
			return nil, ingesterr.New(ingesterr.InvalidMETS, fmt.Errorf("event %s: missing executor/detail/type after overlay", code), nil)
		}
		executor := cfg.Executor
		if executor == premis.VolumeArtistSentinel {
			executor = v.Artist()
		}
		if !needToUpdateEvent(cfg.Type, date, repoMaxDate) {
			continue
		}
		var idValue string
		if cfg.EventIDOverride != "" {
			idValue = cfg.EventIDOverride
		} else {
			eventids[cfg.Type]++
			idValue = fmt.Sprintf("%s%d", cfg.Type, eventids[cfg.Type])
		}

		pe := PremisEvent{
			EventType:     cfg.Type,
			EventIdentifier: PremisEventIdentifier{EventIdentifierType: "UM", EventIdentifierValue: idValue},
			EventDateTime: date.UTC().Format(time.RFC3339),
			LinkingAgentIdentifier: []PremisLinkingAgent{
				{Role: "Executor", IdentifierType: "UM", IdentifierValue: executor},
			},
		}
		if outcomeXML != "" {
			pe.EventOutcomeInformation = &RawXMLBlock{Inner: outcomeXML}
		}
		for _, tool := range cfg.Tools {
			pe.LinkingAgentIdentifier = append(pe.LinkingAgentIdentifier, PremisLinkingAgent{
				Role: "software", IdentifierType: "UM", IdentifierValue: tool,
			})
		}
		emitted = append(emitted, pe)
	}

	// Step 9: PREMIS object.
	fileCount, err := v.FileCount()
	if err != nil {
		return nil, asErr(err)
	}
	pageCount, err := v.PageCount()
	if err != nil {
		return nil, asErr(err)
	}
	object := &PremisObject{
		ObjectIdentifier:  PremisObjectIdentifier{ObjectIdentifierType: "UM", ObjectIdentifierValue: v.Identifier()},
		PreservationLevel: "1",
		SignificantProperties: []PremisSigProp{
			{Type: "file count", Value: strconv.Itoa(fileCount)},
			{Type: "page count", Value: strconv.Itoa(pageCount)},
		},
	}

	// Step 10: record the ingestion event on the Volume before
	// finalizing, so it is reflected in this same METS.
	if err := v.RecordPREMISEvent(ctx, "ingestion", a.now(), ""); err != nil {
		return nil, asErr(err)
	}

	allEvents := append(reemit, emitted...)
	doc.AmdSec = AmdSec{
		ID: "AMD1",
		DigiprovMD: []DigiprovMD{{
			ID: "DIGIPROV1",
			MdWrap: PremisMdWrap{
				MDType: "PREMIS",
				XmlData: PremisXMLData{Events: allEvents, Object: object},
			},
		}},
	}

	// Step 11: filesecs.
	fileIDs := map[string]string{}
	var fileGrps []FileGrp
	fileGrps = append(fileGrps, FileGrp{Use: "zip archive", Files: []FileEntry{
		{ID: "ZIP1", FLocat: FLocat{Href: v.PtObjID() + ".zip", LocType: "URL"}},
	}})

	groups, err := v.FileGroups()
	if err != nil {
		return nil, asErr(err)
	}
	groupNames := make([]string, 0, len(groups))
	for name := range groups {
		groupNames = append(groupNames, name)
	}
	sort.Strings(groupNames)
	for _, name := range groupNames {
		g := groups[name]
		var entries []FileEntry
		for i, f := range g.Files {
			id := fmt.Sprintf("%s%d", g.Spec.Prefix, i+1)
			fileIDs[f] = id
			entries = append(entries, FileEntry{ID: id, FLocat: FLocat{Href: f, LocType: "URL"}})
		}
		fileGrps = append(fileGrps, FileGrp{Use: g.Spec.METSUse, Files: entries})
	}
	doc.FileSec = FileSec{FileGrps: fileGrps}

	// Step 12: structmap.
	byPage, err := v.FileGroupsByPage()
	if err != nil {
		return nil, asErr(err)
	}
	seqs := make([]int, 0, len(byPage))
	for seq := range byPage {
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)

	var pages []DivPage
	for _, seq := range seqs {
		page := DivPage{Type: "page", Order: seq}
		groupsAtPage := byPage[seq]
		gNames := make([]string, 0, len(groupsAtPage))
		for name := range groupsAtPage {
			gNames = append(gNames, name)
		}
		sort.Strings(gNames)
		for _, name := range gNames {
			for _, f := range groupsAtPage[name] {
				if id, ok := fileIDs[f]; ok {
					page.Fptrs = append(page.Fptrs, Fptr{FileID: id})
				}
			}
		}
		pages = append(pages, page)
	}
	doc.StructMap = StructMap{ID: "SM1", Type: "physical", Div: DivVolume{Type: "volume", Pages: pages}}

	// Step 13: write and validate.
	if err := a.writeAndValidate(doc, v.METSPath()); err != nil {
		return nil, err
	}

	return doc, nil
}

func premisEventFromNode(node *xmlquery.Node) PremisEvent {
	pe := PremisEvent{}
	if n := xmlquery.FindOne(node, `./*[local-name()='eventType']`); n != nil {
		pe.EventType = n.InnerText()
	}
	if n := xmlquery.FindOne(node, `./*[local-name()='eventDateTime']`); n != nil {
		pe.EventDateTime = n.InnerText()
	}
	if n := xmlquery.FindOne(node, `./*[local-name()='eventIdentifier']/*[local-name()='eventIdentifierType']`); n != nil {
		pe.EventIdentifier.EventIdentifierType = n.InnerText()
	}
	if n := xmlquery.FindOne(node, `./*[local-name()='eventIdentifier']/*[local-name()='eventIdentifierValue']`); n != nil {
		pe.EventIdentifier.EventIdentifierValue = n.InnerText()
	}
	return pe
}

// needToUpdateEvent returns true unless there is already a stored event of
// type t at a datetime >= datetime.
func needToUpdateEvent(t string, datetime time.Time, repoMaxDate map[string]time.Time) bool {
	max, ok := repoMaxDate[t]
	if !ok {
		return true
	}
	return datetime.After(max)
}

func (a *Assembler) writeAndValidate(doc *Document, path string) error {
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return ingesterr.New(ingesterr.InvalidMETS, err, map[string]any{"file": path})
	}
	out = append([]byte(xml.Header), out...)

	if err := writeFile(path, out); err != nil {
		return ingesterr.OperationFailedf("write_mets", path, err)
	}

	if a.XercesPath == "" {
		return nil
	}
	run := a.ExecCommand
	if run == nil {
		run = exec.Command
	}
	cmd := run(a.XercesPath, path)
	cmdOut, err := cmd.CombinedOutput()
	if err != nil {
		return ingesterr.New(ingesterr.InvalidMETS, err, map[string]any{"file": path, "detail": string(cmdOut)})
	}
	return nil
}

func asErr(err error) *ingesterr.Error {
	if ie, ok := err.(*ingesterr.Error); ok {
		return ie
	}
	return ingesterr.New(ingesterr.InvalidMETS, err, nil)
}
