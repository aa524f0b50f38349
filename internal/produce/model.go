// Package produce implements the price-tracking pipeline: parsing daily
// price-list snapshots, building monthly parquet partitions, and computing
// time-windowed analytics over them.
package produce

import (
	"regexp"
	"strings"
)

// Unit is the pricing unit of an item.
type Unit string

const (
	UnitPerWeight Unit = "per-weight"
	UnitPerBunch  Unit = "per-bunch"
	UnitPerItem   Unit = "per-item"
)

// ItemRecord is one parsed price-list row for one date. RawName is the
// identity key for all time-series joins; visually distinct variants of the
// same produce (an organic and a conventional listing of "Apples") carry
// different RawNames and must never be merged.
type ItemRecord struct {
	ID            string  `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Date          string  `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	RawName       string  `parquet:"name=raw_name, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Price         float64 `parquet:"name=price, type=DOUBLE"`
	PriceUnparsed bool    `parquet:"name=price_unparsed, type=BOOLEAN"`
	Unit          string  `parquet:"name=unit, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Organic       bool    `parquet:"name=organic, type=BOOLEAN"`
	IPM           bool    `parquet:"name=ipm, type=BOOLEAN"`
	Waxed         bool    `parquet:"name=waxed, type=BOOLEAN"`
	LocalOrigin   bool    `parquet:"name=local_origin, type=BOOLEAN"`
	Hydroponic    bool    `parquet:"name=hydroponic, type=BOOLEAN"`
	Origin        string  `parquet:"name=origin, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
}

// DisplayName returns the RawName with trailing decoration markers removed.
// Markers like a trailing "-" or "*" distinguish listing variants in the
// source table and are not part of the presentable name.
func (r ItemRecord) DisplayName() string {
	return DisplayName(r.RawName)
}

var nonAlphanumericRun = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases the name, collapses every run of non-alphanumeric
// characters to a single hyphen, and trims leading and trailing hyphens.
func Slug(name string) string {
	s := strings.ToLower(name)
	s = nonAlphanumericRun.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// DisplayName strips trailing decoration markers from a raw item name.
func DisplayName(rawName string) string {
	return strings.TrimRight(strings.TrimSpace(rawName), " -*+")
}

// RecordID derives the record identity from its date and name slug. Two
// rows on the same date whose names normalize to the same slug collide;
// the parser keeps the first and drops the rest.
func RecordID(date, rawName string) string {
	return date + "-" + Slug(rawName)
}
