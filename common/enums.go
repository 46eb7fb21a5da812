// Package common keeps enums and small helpers shared by configuration and
// processing packages, so config does not have to import processing code.
package common

//go:generate go tool go-enum --names --marshal

// Kind of the book payload as declared by store listing and archive info.
// ENUM(unknown, pdf, epub, mp3)
type BookType int

// Ext returns output file extension. Audio books produce directory.
func (t BookType) Ext() string {
	switch t {
	case BookTypePdf:
		return ".pdf"
	case BookTypeEpub:
		return ".epub"
	default:
		return ""
	}
}

// Supported reports if we know how to produce output for the type.
func (t BookType) Supported() bool {
	return t == BookTypePdf || t == BookTypeEpub || t == BookTypeMp3
}

// How single archive entry has to be treated after extraction.
// ENUM(skip, binary, text)
type EntryKind int

// Specification of image resizing mode.
// ENUM(none, keepAR, stretch)
type ImageResizeMode int
