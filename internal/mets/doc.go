// Package mets implements the METS assembler: the 13-step algorithm that
// produces the canonical AIP METS for a Volume, merging provenance from
// the repository's prior METS, the SIP's source METS, and events
// generated during this ingest, without duplicating events across
// reingests (spec.md §4.H).
//
// Output XML is built with stdlib encoding/xml struct tags; inputs
// (repository METS, source METS) are read with antchfx/xmlquery, which
// gives XPath evaluation without a cgo dependency.
package mets

import "encoding/xml"

type Document struct {
	XMLName   xml.Name  `xml:"METS:mets"`
	XMLNSMets string    `xml:"xmlns:METS,attr"`
	XMLNSXlink string   `xml:"xmlns:xlink,attr"`
	OBJID     string    `xml:"OBJID,attr"`
	Header    Header    `xml:"METS:metsHdr"`
	DmdSecs   []DmdSec  `xml:"METS:dmdSec"`
	AmdSec    AmdSec    `xml:"METS:amdSec"`
	FileSec   FileSec   `xml:"METS:fileSec"`
	StructMap StructMap `xml:"METS:structMap"`
}

type Header struct {
	CreateDate   string `xml:"CREATEDATE,attr"`
	RecordStatus string `xml:"RECORDSTATUS,attr"`
	Agent        Agent  `xml:"METS:agent"`
}

type Agent struct {
	Role string `xml:"ROLE,attr"`
	Type string `xml:"TYPE,attr"`
	Name string `xml:"METS:name"`
}

type DmdSec struct {
	ID     string `xml:"ID,attr"`
	MdWrap MdWrap `xml:"METS:mdWrap"`
}

type MdWrap struct {
	MDType  string      `xml:"MDTYPE,attr"`
	XmlData RawXMLBlock `xml:"METS:xmlData"`
}

// RawXMLBlock carries pre-serialized XML verbatim (e.g. a MARCXML record
// pulled from the source METS) without re-encoding it through Go structs.
type RawXMLBlock struct {
	Inner string `xml:",innerxml"`
}

type AmdSec struct {
	ID         string       `xml:"ID,attr"`
	DigiprovMD []DigiprovMD `xml:"METS:digiprovMD"`
}

type DigiprovMD struct {
	ID     string       `xml:"ID,attr"`
	MdWrap PremisMdWrap `xml:"METS:mdWrap"`
}

type PremisMdWrap struct {
	MDType  string        `xml:"MDTYPE,attr"`
	XmlData PremisXMLData `xml:"METS:xmlData"`
}

type PremisXMLData struct {
	Events []PremisEvent `xml:"PREMIS:event"`
	Object *PremisObject `xml:"PREMIS:object,omitempty"`
}

type PremisEvent struct {
	EventType               string               `xml:"PREMIS:eventType"`
	EventIdentifier         PremisEventIdentifier `xml:"PREMIS:eventIdentifier"`
	EventDateTime           string               `xml:"PREMIS:eventDateTime,omitempty"`
	EventOutcomeInformation *RawXMLBlock         `xml:"PREMIS:eventOutcomeInformation,omitempty"`
	LinkingAgentIdentifier  []PremisLinkingAgent `xml:"PREMIS:linkingAgentIdentifier"`
}

type PremisEventIdentifier struct {
	EventIdentifierType  string `xml:"PREMIS:eventIdentifierType"`
	EventIdentifierValue string `xml:"PREMIS:eventIdentifierValue"`
}

type PremisLinkingAgent struct {
	Role            string `xml:"PREMIS:linkingAgentRole"`
	IdentifierType  string `xml:"PREMIS:linkingAgentIdentifierType"`
	IdentifierValue string `xml:"PREMIS:linkingAgentIdentifierValue"`
}

type PremisObject struct {
	ObjectIdentifier      PremisObjectIdentifier `xml:"PREMIS:objectIdentifier"`
	PreservationLevel     string                 `xml:"PREMIS:preservationLevel>PREMIS:preservationLevelValue"`
	SignificantProperties []PremisSigProp        `xml:"PREMIS:significantProperties"`
}

type PremisObjectIdentifier struct {
	ObjectIdentifierType  string `xml:"PREMIS:objectIdentifierType"`
	ObjectIdentifierValue string `xml:"PREMIS:objectIdentifierValue"`
}

type PremisSigProp struct {
	Type  string `xml:"PREMIS:significantPropertiesType"`
	Value string `xml:"PREMIS:significantPropertiesValue"`
}

type FileSec struct {
	FileGrps []FileGrp `xml:"METS:fileGrp"`
}

type FileGrp struct {
	Use   string      `xml:"USE,attr"`
	Files []FileEntry `xml:"METS:file"`
}

type FileEntry struct {
	ID     string `xml:"ID,attr"`
	FLocat FLocat `xml:"METS:FLocat"`
}

type FLocat struct {
	Href    string `xml:"xlink:href,attr"`
	LocType string `xml:"LOCTYPE,attr"`
}

type StructMap struct {
	ID   string    `xml:"ID,attr"`
	Type string    `xml:"TYPE,attr"`
	Div  DivVolume `xml:"METS:div"`
}

type DivVolume struct {
	Type  string    `xml:"TYPE,attr"`
	Pages []DivPage `xml:"METS:div"`
}

type DivPage struct {
	Type       string `xml:"TYPE,attr"`
	Order      int    `xml:"ORDER,attr"`
	OrderLabel string `xml:"ORDERLABEL,attr,omitempty"`
	Label      string `xml:"LABEL,attr,omitempty"`
	Fptrs      []Fptr `xml:"METS:fptr"`
}

type Fptr struct {
	FileID string `xml:"FILEID,attr"`
}
