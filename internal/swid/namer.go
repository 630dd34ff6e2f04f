// Package swid composes software identity names and minimal SWID tags
// for the inventory. Names follow the tag-creator convention
// <regid>__<os>-<package>-<version>, so one package version on one
// platform maps to exactly one identity.
package swid

import (
	"encoding/xml"
	"fmt"
)

const schemaNamespace = "http://standards.iso.org/iso/19770/-2/2015/schema.xsd"

// Namer builds identity names and tags for one tag creator on one
// platform. The OS string already carries the architecture label.
type Namer struct {
	regid  string
	entity string
	os     string
}

// NewNamer creates a Namer for the given tag creator regid, entity
// display name and OS string (e.g. "debian_9.0-x86_64").
func NewNamer(regid, entity, os string) *Namer {
	return &Namer{regid: regid, entity: entity, os: os}
}

// Name returns the full software identifier for a package version.
func (n *Namer) Name(pkg, version string) string {
	return n.regid + "__" + n.TagID(pkg, version)
}

// TagID returns the identifier without the regid prefix, used as the
// tagId attribute inside SWID tags.
func (n *Namer) TagID(pkg, version string) string {
	return n.os + "-" + pkg + "-" + version
}

// OS returns the platform label the namer was built with.
func (n *Namer) OS() string {
	return n.os
}

type softwareIdentity struct {
	XMLName       xml.Name  `xml:"SoftwareIdentity"`
	Namespace     string    `xml:"xmlns,attr"`
	Name          string    `xml:"name,attr"`
	TagID         string    `xml:"tagId,attr"`
	Version       string    `xml:"version,attr"`
	VersionScheme string    `xml:"versionScheme,attr"`
	Entity        tagEntity `xml:"Entity"`
}

type tagEntity struct {
	Name  string `xml:"name,attr"`
	RegID string `xml:"regid,attr"`
	Role  string `xml:"role,attr"`
}

// Tag renders the minimal SWID tag document for one package version.
// Minimal tags carry no payload or file evidence, only the identity and
// the tag creator entity.
func (n *Namer) Tag(pkg, version string) (string, error) {
	doc := softwareIdentity{
		Namespace:     schemaNamespace,
		Name:          pkg,
		TagID:         n.TagID(pkg, version),
		Version:       version,
		VersionScheme: "alphanumeric",
		Entity: tagEntity{
			Name:  n.entity,
			RegID: n.regid,
			Role:  "tagCreator",
		},
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render tag for %s: %w", pkg, err)
	}
	return xml.Header + string(out) + "\n", nil
}
