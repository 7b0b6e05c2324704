// Package scraper holds the HTML helpers shared by page implementations
// and extractors.
//
// Documents are validated, charset-decoded (Content-Type first, then
// chardet detection) and parsed with goquery. StructurePolicy is the
// bluemonday policy used to reduce zone samples to structural markup
// before they are sent for selector generation.
//
// The text helpers normalize whitespace, truncate on rune boundaries,
// find and parse prices ("$1,299.00", "€49,99") and resolve relative
// links against a base URL.
package scraper
