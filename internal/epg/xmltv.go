// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package epg renders captured programs as XMLTV or as a plain text listing.
package epg

import "encoding/xml"

// TV is the XMLTV document root.
type TV struct {
	XMLName      xml.Name    `xml:"tv"`
	Generator    string      `xml:"generator-info-name,attr,omitempty"`
	GeneratorURL string      `xml:"generator-info-url,attr,omitempty"`
	Date         string      `xml:"date,attr,omitempty"`
	Channels     []Channel   `xml:"channel"`
	Programmes   []Programme `xml:"programme"`
}

type Channel struct {
	ID          string `xml:"id,attr"`
	DisplayName string `xml:"display-name"`
	Icon        *Icon  `xml:"icon,omitempty"`
	URL         string `xml:"url,omitempty"`
}

type Icon struct {
	Src string `xml:"src,attr"`
}

type Programme struct {
	Start      string   `xml:"start,attr"`
	Stop       string   `xml:"stop,attr"`
	Channel    string   `xml:"channel,attr"`
	Title      Title    `xml:"title"`
	SubTitle   string   `xml:"sub-title,omitempty"`
	Desc       string   `xml:"desc,omitempty"`
	Credits    *Credits `xml:"credits,omitempty"`
	Date       string   `xml:"date,omitempty"`
	Categories []string `xml:"category,omitempty"`
	Country    string   `xml:"country,omitempty"`
	Video      *Video   `xml:"video,omitempty"`
	Rating     *Rating  `xml:"rating,omitempty"`
}

type Title struct {
	// Lang is the ISO 639 language code, omitted when unknown.
	Lang string `xml:"lang,attr,omitempty"`
	Text string `xml:",chardata"`
}

type Credits struct {
	Director string   `xml:"director,omitempty"`
	Actors   []string `xml:"actor,omitempty"`
}

type Video struct {
	Present string `xml:"present"`
	Aspect  string `xml:"aspect,omitempty"`
	Quality string `xml:"quality,omitempty"`
}

type Rating struct {
	System string `xml:"system,attr,omitempty"`
	Value  string `xml:"value"`
}
