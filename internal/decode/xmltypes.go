// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

// Package decode turns one decompressed feed XML document into a
// domain.Train. It recognizes the "current" and "legacy" namespaces
// the feed has used over time and tolerates missing optional fields;
// only a malformed document or a missing required element fails
// decoding (spec.md §4.1).
package decode

import "encoding/xml"

// Namespaces the feed has shipped under. The decoder matches elements
// by local name only, so both decode the same way; which one a
// payload carries is only logged.
const (
	NamespaceCurrent = "urn:ndov:cdm:trein:reisinformatie:data:2"
	NamespaceLegacy  = "urn:ndov:cdm:trein:reisinformatie:data:1"
)

// xmlProduct is the outermost element: ReisInformatieProductDVS.
type xmlProduct struct {
	XMLName   xml.Name         `xml:"ReisInformatieProductDVS"`
	TimeStamp string           `xml:"TimeStamp,attr"`
	Vertrek   xmlVertrekStaat  `xml:"DynamischeVertrekStaat"`
}

type xmlVertrekStaat struct {
	RitID      string     `xml:"RitId"`
	RitDatum   string     `xml:"RitDatum"`
	RitStation xmlStation `xml:"RitStation"`
	Trein      xmlTrein   `xml:"Trein"`
}

type xmlStation struct {
	Code      string `xml:"StationCode"`
	KorteNaam string `xml:"KorteNaam"`
	MiddelNaam string `xml:"MiddelNaam"`
	LangeNaam string `xml:"LangeNaam"`
	UICCode   string `xml:"UICCode"`
	Type      string `xml:"Type"`
}

type xmlSoort struct {
	Code  string `xml:"Code,attr"`
	Value string `xml:",chardata"`
}

type xmlTijd struct {
	InfoStatus string `xml:"InfoStatus,attr"`
	Value      string `xml:",chardata"`
}

type xmlSpoor struct {
	InfoStatus string `xml:"InfoStatus,attr"`
	Nummer     string `xml:"SpoorNummer"`
	Fase       string `xml:"SpoorFase"`
}

type xmlBestemming struct {
	InfoStatus string     `xml:"InfoStatus,attr"`
	xmlStation
}

// xmlRoute models both VerkorteRoute and StopStations: an InfoStatus
// attribute on the wrapper, a list of Station children.
type xmlRoute struct {
	InfoStatus string       `xml:"InfoStatus,attr"`
	Stations   []xmlStation `xml:"Station"`
}

type xmlWijziging struct {
	Type           string      `xml:"WijzigingType"`
	OorzaakKort    string      `xml:"WijzigingOorzaakKort"`
	OorzaakLang    string      `xml:"WijzigingOorzaakLang"`
	Station        *xmlStation `xml:"WijzigingStation"`
}

type xmlMaterieel struct {
	Soort              string      `xml:"MaterieelSoort"`
	Aanduiding         string      `xml:"MaterieelAanduiding"`
	Lengte             string      `xml:"MaterieelLengte"`
	Eindbestemming     []xmlBestemmingMat `xml:"MaterieelDeelEindBestemming"`
	VertrekPositie     string      `xml:"MaterieelDeelVertrekPositie"`
	VolgordeVertrek    string      `xml:"MaterieelDeelVolgordeVertrek"`
}

type xmlBestemmingMat struct {
	InfoStatus string     `xml:"InfoStatus,attr"`
	xmlStation
}

type xmlVleugel struct {
	Eindbestemming []xmlBestemmingVleugel `xml:"TreinVleugelEindBestemming"`
	VertrekSpoor   []xmlSpoor             `xml:"TreinVleugelVertrekSpoor"`
	StopStations   []xmlRoute             `xml:"StopStations"`
	Materieel      []xmlMaterieel         `xml:"MaterieelDeelDVS"`
	Wijzigingen    []xmlWijziging         `xml:"Wijziging"`
}

type xmlBestemmingVleugel struct {
	InfoStatus string     `xml:"InfoStatus,attr"`
	xmlStation
}

type xmlReisTip struct {
	Code     string       `xml:"ReisTipCode"`
	Stations []xmlStation `xml:"ReisTipStation"`
}

type xmlInstapTip struct {
	UitstapStation xmlStation `xml:"InstapTipUitstapStation"`
	Eindbestemming xmlStation `xml:"InstapTipTreinEindBestemming"`
	TreinSoort     string     `xml:"InstapTipTreinSoort"`
	VertrekSpoor   xmlSpoor   `xml:"InstapTipVertrekSpoor"`
	VertrekTijd    string     `xml:"InstapTipVertrekTijd"`
}

type xmlOverstapTip struct {
	Bestemming      xmlStation `xml:"OverstapTipBestemming"`
	OverstapStation xmlStation `xml:"OverstapTipOverstapStation"`
}

type xmlTrein struct {
	TreinNummer                     string          `xml:"TreinNummer"`
	TreinSoort                      xmlSoort        `xml:"TreinSoort"`
	Vervoerder                      string          `xml:"Vervoerder"`
	TreinNaam                       string          `xml:"TreinNaam"`
	TreinStatus                     string          `xml:"TreinStatus"`
	VertrekTijd                     []xmlTijd       `xml:"VertrekTijd"`
	ExacteVertrekVertraging         string          `xml:"ExacteVertrekVertraging"`
	GedempteVertrekVertraging       string          `xml:"GedempteVertrekVertraging"`
	TreinVertrekSpoor               []xmlSpoor      `xml:"TreinVertrekSpoor"`
	TreinEindBestemming              []xmlBestemming `xml:"TreinEindBestemming"`
	Reserveren                      string          `xml:"Reserveren"`
	Toeslag                         string          `xml:"Toeslag"`
	NietInstappen                   *string         `xml:"NietInstappen"`
	RangeerBeweging                 string          `xml:"RangeerBeweging"`
	SpeciaalKaartje                 string          `xml:"SpeciaalKaartje"`
	AchterBlijvenAchtersteTreinDeel string          `xml:"AchterBlijvenAchtersteTreinDeel"`
	Wijzigingen                     []xmlWijziging  `xml:"Wijziging"`
	ReisTips                        []xmlReisTip    `xml:"ReisTip"`
	InstapTips                      []xmlInstapTip  `xml:"InstapTip"`
	OverstapTips                    []xmlOverstapTip `xml:"OverstapTip"`
	VerkorteRoute                   []xmlRoute      `xml:"VerkorteRoute"`
	Vleugels                        []xmlVleugel    `xml:"TreinVleugel"`
}
