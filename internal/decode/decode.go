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

package decode

import (
	"bytes"
	"encoding/xml"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/railfeed/dvsd/internal/domain"
)

// ErrMalformed is returned (wrapped) when the document cannot be
// parsed as XML at all, or a required element is absent.
var ErrMalformed = errors.New("malformed dvs message")

// carrierFixups corrects known-bad carrier names the feed emits
// (spec.md §6).
var carrierFixups = map[string]string{
	"NS Interna": "NS International",
	"NS Int":     "NS International",
	"Locon Bene": "Locon Benelux",
}

// timeLayouts are the ISO-8601 timestamp shapes the feed uses,
// tried in order.
var timeLayouts = []string{
	"2006-01-02T15:04:05-07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
}

// Decode parses one decompressed DVS XML document into a Train.
// It fails only on malformed XML or a missing required element;
// missing optional fields are left unset and logged at debug level
// (spec.md §4.1).
func Decode(data []byte) (*domain.Train, error) {
	namespace := sniffNamespace(data)
	log.Debug("decoding dvs message", zap.String("namespace", namespace))

	product, err := decodeProduct(data)
	if err != nil {
		log.Error("xml parse failed", zap.Error(err))
		return nil, errors.Annotate(ErrMalformed, err.Error())
	}

	vs := product.Vertrek
	if vs.RitID == "" {
		return nil, errors.Annotate(ErrMalformed, "RitId missing")
	}
	if vs.Trein.TreinNummer == "" {
		return nil, errors.Annotate(ErrMalformed, "TreinNummer missing")
	}

	t := &domain.Train{
		TripID:      vs.RitID,
		TripDate:    vs.RitDatum,
		TripStation: convertStation(vs.RitStation),
		TrainNumber: vs.Trein.TreinNummer,
		TransportKind: domain.TransportKind{
			Code: vs.Trein.TreinSoort.Code,
			Name: strings.TrimSpace(vs.Trein.TreinSoort.Value),
		},
		Carrier:   normalizeCarrier(vs.Trein.Vervoerder),
		TrainName: vs.Trein.TreinNaam,
		Status:    vs.Trein.TreinStatus,
	}

	if ts, err := parseTimestamp(product.TimeStamp); err == nil {
		t.MessageTS = ts
	} else {
		log.Debug("missing/invalid product timestamp", zap.Error(err))
	}

	tn := vs.Trein
	if planned := findTijd(tn.VertrekTijd, "Gepland"); planned != "" {
		if ts, err := parseTimestamp(planned); err == nil {
			t.PlannedDeparture = ts
		} else {
			log.Debug("invalid planned departure", zap.Error(err))
		}
	} else {
		return nil, errors.Annotate(ErrMalformed, "planned VertrekTijd missing")
	}
	if actueel := findTijd(tn.VertrekTijd, "Actueel"); actueel != "" {
		if ts, err := parseTimestamp(actueel); err == nil {
			t.CurrentDeparture = ts
		} else {
			log.Debug("invalid current departure", zap.Error(err))
		}
	} else {
		t.CurrentDeparture = t.PlannedDeparture
		log.Debug("current VertrekTijd absent, defaulting to planned")
	}

	if d, err := parseISODuration(tn.ExacteVertrekVertraging); err == nil {
		t.ExactDelaySeconds = int(d.Seconds())
	} else if tn.ExacteVertrekVertraging != "" {
		log.Debug("invalid exact delay duration", zap.Error(err))
	}
	if d, err := parseISODuration(tn.GedempteVertrekVertraging); err == nil {
		t.DampedDelaySeconds = int(d.Seconds())
	} else if tn.GedempteVertrekVertraging != "" {
		log.Debug("invalid damped delay duration", zap.Error(err))
	}

	t.PlannedPlatform = convertPlatforms(filterSpoor(tn.TreinVertrekSpoor, "Gepland"))
	t.CurrentPlatform = convertPlatforms(filterSpoor(tn.TreinVertrekSpoor, "Actueel"))

	t.PlannedDestinations = convertBestemmingen(filterBestemming(tn.TreinEindBestemming, "Gepland"))
	t.CurrentDestinations = convertBestemmingen(filterBestemming(tn.TreinEindBestemming, "Actueel"))

	t.ReservationRequired = parseBoolean(tn.Reserveren)
	t.SupplementRequired = parseBoolean(tn.Toeslag)
	if tn.NietInstappen != nil {
		t.DoNotBoard = parseBoolean(*tn.NietInstappen)
	} else {
		log.Debug("NietInstappen element missing", zap.String("train", t.TrainNumber), zap.String("station", t.TripStation.Code))
	}
	t.Shunting = parseBoolean(tn.RangeerBeweging)
	t.SpecialTicket = parseBoolean(tn.SpeciaalKaartje)
	t.RearStaysBehind = parseBoolean(tn.AchterBlijvenAchtersteTreinDeel)

	for _, w := range tn.Wijzigingen {
		t.Modifications = append(t.Modifications, convertWijziging(w))
	}

	for _, route := range tn.VerkorteRoute {
		stations := convertStations(route.Stations)
		if route.InfoStatus == "Actueel" {
			t.CurrentShortRoute = stations
		} else {
			t.PlannedShortRoute = stations
		}
	}

	for _, tip := range tn.ReisTips {
		t.TravelTips = append(t.TravelTips, domain.TravelTip{
			Code:     tip.Code,
			Stations: convertStations(tip.Stations),
		})
	}
	for _, tip := range tn.InstapTips {
		platform := convertPlatform(tip.VertrekSpoor)
		dep, _ := parseTimestamp(tip.VertrekTijd)
		t.BoardTips = append(t.BoardTips, domain.BoardTip{
			TrainKind:     tip.TreinSoort,
			AlightStation: convertStation(tip.UitstapStation),
			Destination:   convertStation(tip.Eindbestemming),
			Platform:      &platform,
			DepartureUTC:  dep.Format(time.RFC3339),
		})
	}
	for _, tip := range tn.OverstapTips {
		t.ChangeTips = append(t.ChangeTips, domain.ChangeTip{
			Destination:   convertStation(tip.Bestemming),
			ChangeStation: convertStation(tip.OverstapStation),
		})
	}

	for _, v := range tn.Vleugels {
		t.Wings = append(t.Wings, convertVleugel(v))
	}
	if len(t.Wings) == 0 {
		return nil, errors.Annotate(ErrMalformed, "train has no wings")
	}

	return t, nil
}

// decodeProduct locates and decodes the ReisInformatieProductDVS
// element. The feed's own reference client locates it with
// root.find(...) as a child of the message root rather than assuming
// it is the root itself, so this scans for the element by local name
// at any depth instead of unmarshaling the whole document as that one
// type — a bare ReisInformatieProductDVS document (as used in tests)
// still decodes, since it's simply the first start element found.
func decodeProduct(data []byte) (xmlProduct, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return xmlProduct{}, errors.New("ReisInformatieProductDVS element not found")
			}
			return xmlProduct{}, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "ReisInformatieProductDVS" {
			continue
		}
		var product xmlProduct
		if err := dec.DecodeElement(&product, &se); err != nil {
			return xmlProduct{}, err
		}
		return product, nil
	}
}

func sniffNamespace(data []byte) string {
	dec := xml.NewDecoder(strings.NewReader(string(data)))
	for {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}
		if se, ok := tok.(xml.StartElement); ok {
			if se.Name.Space == NamespaceCurrent {
				return NamespaceCurrent
			}
			if se.Name.Space == NamespaceLegacy {
				return NamespaceLegacy
			}
			return se.Name.Space
		}
	}
}

func findTijd(tijden []xmlTijd, status string) string {
	for _, t := range tijden {
		if t.InfoStatus == status {
			return strings.TrimSpace(t.Value)
		}
	}
	return ""
}

func filterSpoor(sporen []xmlSpoor, status string) []xmlSpoor {
	var out []xmlSpoor
	for _, s := range sporen {
		if s.InfoStatus == status {
			out = append(out, s)
		}
	}
	return out
}

func filterBestemming(dests []xmlBestemming, status string) []xmlBestemming {
	var out []xmlBestemming
	for _, d := range dests {
		if d.InfoStatus == status {
			out = append(out, d)
		}
	}
	return out
}

func convertStation(s xmlStation) domain.Station {
	return domain.Station{
		Code:      s.Code,
		ShortName: s.KorteNaam,
		MidName:   s.MiddelNaam,
		LongName:  s.LangeNaam,
		UICCode:   s.UICCode,
		Type:      s.Type,
	}
}

func convertStations(in []xmlStation) []domain.Station {
	out := make([]domain.Station, 0, len(in))
	for _, s := range in {
		out = append(out, convertStation(s))
	}
	return out
}

func convertPlatform(s xmlSpoor) domain.Platform {
	return domain.Platform{Number: s.Nummer, Phase: s.Fase}
}

func convertPlatforms(in []xmlSpoor) []domain.Platform {
	out := make([]domain.Platform, 0, len(in))
	for _, s := range in {
		out = append(out, convertPlatform(s))
	}
	return out
}

func convertBestemmingen(in []xmlBestemming) []domain.Station {
	out := make([]domain.Station, 0, len(in))
	for _, b := range in {
		out = append(out, convertStation(b.xmlStation))
	}
	return out
}

func convertWijziging(w xmlWijziging) domain.Modification {
	kind, _ := strconv.Atoi(strings.TrimSpace(w.Type))
	mod := domain.Modification{
		Kind:       domain.ModificationKind(kind),
		CauseShort: w.OorzaakKort,
		CauseLong:  w.OorzaakLang,
	}
	if w.Station != nil {
		s := convertStation(*w.Station)
		mod.Station = &s
	}
	return mod
}

func convertVleugel(v xmlVleugel) domain.Wing {
	w := domain.Wing{}
	for _, b := range v.Eindbestemming {
		s := convertStation(b.xmlStation)
		if b.InfoStatus == "Actueel" {
			w.CurrentDestination = s
		} else {
			w.Destination = s
		}
	}
	if w.CurrentDestination.Code == "" {
		w.CurrentDestination = w.Destination
	}
	for _, sp := range v.VertrekSpoor {
		p := convertPlatform(sp)
		if sp.InfoStatus == "Actueel" {
			w.CurrentPlatform = append(w.CurrentPlatform, p)
		} else {
			w.PlannedPlatform = append(w.PlannedPlatform, p)
		}
	}
	for _, route := range v.StopStations {
		stations := convertStations(route.Stations)
		if route.InfoStatus == "Actueel" {
			w.CurrentStops = stations
		} else {
			w.PlannedStops = stations
		}
	}
	for _, m := range v.Materieel {
		part := domain.RollingStockPart{
			Kind:              m.Soort,
			Designation:       m.Aanduiding,
			Length:            m.Lengte,
			DeparturePosition: m.VertrekPositie,
			DepartureOrder:    m.VolgordeVertrek,
		}
		for _, b := range m.Eindbestemming {
			s := convertStation(b.xmlStation)
			if b.InfoStatus == "Actueel" {
				part.CurrentDestination = s
			} else {
				part.Destination = s
			}
		}
		w.RollingStock = append(w.RollingStock, part)
	}
	for _, wz := range v.Wijzigingen {
		w.Modifications = append(w.Modifications, convertWijziging(wz))
	}
	return w
}

func normalizeCarrier(name string) string {
	if fixed, ok := carrierFixups[name]; ok {
		return fixed
	}
	return name
}

func parseBoolean(value string) bool {
	return value == "J"
}

func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	var lastErr error
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

// isoDurationPattern matches a (possibly negative) ISO-8601 duration,
// e.g. "PT5M30S" or "-PT2M" (spec.md §4.1: "duration parsing must
// accept negative durations").
var isoDurationPattern = regexp.MustCompile(`^(-)?P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

func parseISODuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, errors.New("empty duration")
	}
	m := isoDurationPattern.FindStringSubmatch(value)
	if m == nil {
		return 0, errors.Errorf("invalid ISO-8601 duration: %q", value)
	}
	var seconds float64
	atoi := func(s string) float64 {
		if s == "" {
			return 0
		}
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	seconds += atoi(m[2]) * 365 * 24 * 3600 // years, approximate
	seconds += atoi(m[3]) * 30 * 24 * 3600  // months, approximate
	seconds += atoi(m[4]) * 24 * 3600
	seconds += atoi(m[5]) * 3600
	seconds += atoi(m[6]) * 60
	seconds += atoi(m[7])
	d := time.Duration(seconds * float64(time.Second))
	if m[1] == "-" {
		d = -d
	}
	return d, nil
}
