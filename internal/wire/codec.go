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

package wire

import (
	"hash/crc32"
	"time"

	"github.com/pingcap/errors"

	"github.com/railfeed/dvsd/internal/domain"
	"github.com/railfeed/dvsd/internal/store"
)

// MagicIndex marks the start of every encoded snapshot.
const MagicIndex = 0xDEADD75D

// Version is the current wire format version.
const Version = 1

// Encode serializes a store.Snapshot losslessly: magic, version byte,
// train count, each train's fields, and a CRC32 trailer over the
// whole body (property R1: Decode(Encode(s)) reproduces s field for
// field). Only by_station is serialized; by_train is derivable from
// it on Decode since both indices hold the same trains.
func Encode(snap store.Snapshot) []byte {
	var body Encbuf
	var count int
	for _, bucket := range snap.ByStation {
		count += len(bucket)
	}
	body.PutBE32int(count)
	for station, bucket := range snap.ByStation {
		for trainNumber, t := range bucket {
			putTrain(&body, station, trainNumber, t)
		}
	}

	var out Encbuf
	out.PutBE32(MagicIndex)
	out.PutByte(Version)
	out.PutBE64int64(snap.TakenAt.UnixNano())
	out.PutBE32int(body.Len())
	body.PutHash(crc32.New(CastagnoliTable))
	out.B = append(out.B, body.Get()...)
	return out.Get()
}

// Decode parses bytes produced by Encode back into a Snapshot.
func Decode(data []byte) (store.Snapshot, error) {
	d := &Decbuf{B: data}
	if d.Be32() != MagicIndex {
		return store.Snapshot{}, errors.New("wire: bad magic number")
	}
	version := d.Byte()
	if version != Version {
		return store.Snapshot{}, errors.Errorf("wire: unsupported version %d", version)
	}
	takenAtNanos := d.Be64int64()
	bodyLen := int(d.Be32())
	if d.Err() != nil {
		return store.Snapshot{}, errors.Trace(d.Err())
	}
	if len(d.B) < bodyLen+4 {
		return store.Snapshot{}, errors.New("wire: truncated buffer")
	}
	trailerStart := bodyLen + 4
	frame := &Decbuf{B: d.B[:trailerStart]}
	frame.CheckCRC32()
	if frame.Err() != nil {
		return store.Snapshot{}, errors.Trace(frame.Err())
	}
	body := &Decbuf{B: frame.B}

	count := int(body.Be32())
	snap := store.Snapshot{
		TakenAt:   time.Unix(0, takenAtNanos).UTC(),
		ByStation: make(map[string]map[string]*domain.Train),
		ByTrain:   make(map[string]map[string]*domain.Train),
	}
	for i := 0; i < count; i++ {
		station, trainNumber, train := getTrain(body)
		if body.Err() != nil {
			return store.Snapshot{}, errors.Trace(body.Err())
		}
		if snap.ByStation[station] == nil {
			snap.ByStation[station] = make(map[string]*domain.Train)
		}
		snap.ByStation[station][trainNumber] = train
		if snap.ByTrain[trainNumber] == nil {
			snap.ByTrain[trainNumber] = make(map[string]*domain.Train)
		}
		snap.ByTrain[trainNumber][station] = train
	}
	return snap, nil
}

func putStation(e *Encbuf, s domain.Station) {
	e.PutUvarintStr(s.Code)
	e.PutUvarintStr(s.ShortName)
	e.PutUvarintStr(s.MidName)
	e.PutUvarintStr(s.LongName)
	e.PutUvarintStr(s.UICCode)
	e.PutUvarintStr(s.Type)
}

func getStation(d *Decbuf) domain.Station {
	return domain.Station{
		Code:      d.UvarintStr(),
		ShortName: d.UvarintStr(),
		MidName:   d.UvarintStr(),
		LongName:  d.UvarintStr(),
		UICCode:   d.UvarintStr(),
		Type:      d.UvarintStr(),
	}
}

func putTime(e *Encbuf, t time.Time) { e.PutBE64int64(t.UnixNano()) }
func getTime(d *Decbuf) time.Time    { return time.Unix(0, d.Be64int64()).UTC() }

func putPlatform(e *Encbuf, p domain.Platform) {
	e.PutUvarintStr(p.Number)
	e.PutUvarintStr(p.Phase)
}

func getPlatform(d *Decbuf) domain.Platform {
	return domain.Platform{Number: d.UvarintStr(), Phase: d.UvarintStr()}
}

func putPlatforms(e *Encbuf, ps []domain.Platform) {
	e.PutBE32int(len(ps))
	for _, p := range ps {
		putPlatform(e, p)
	}
}

func getPlatforms(d *Decbuf) []domain.Platform {
	n := int(d.Be32())
	if n == 0 {
		return nil
	}
	out := make([]domain.Platform, n)
	for i := range out {
		out[i] = getPlatform(d)
	}
	return out
}

func putStations(e *Encbuf, ss []domain.Station) {
	e.PutBE32int(len(ss))
	for _, s := range ss {
		putStation(e, s)
	}
}

func getStations(d *Decbuf) []domain.Station {
	n := int(d.Be32())
	if n == 0 {
		return nil
	}
	out := make([]domain.Station, n)
	for i := range out {
		out[i] = getStation(d)
	}
	return out
}

func putModification(e *Encbuf, m domain.Modification) {
	e.PutBE32int(int(m.Kind))
	e.PutUvarintStr(m.CauseShort)
	e.PutUvarintStr(m.CauseLong)
	if m.Station != nil {
		e.PutBool(true)
		putStation(e, *m.Station)
	} else {
		e.PutBool(false)
	}
}

func getModification(d *Decbuf) domain.Modification {
	m := domain.Modification{
		Kind:       domain.ModificationKind(d.Be32()),
		CauseShort: d.UvarintStr(),
		CauseLong:  d.UvarintStr(),
	}
	if d.Bool() {
		st := getStation(d)
		m.Station = &st
	}
	return m
}

func putModifications(e *Encbuf, ms []domain.Modification) {
	e.PutBE32int(len(ms))
	for _, m := range ms {
		putModification(e, m)
	}
}

func getModifications(d *Decbuf) []domain.Modification {
	n := int(d.Be32())
	if n == 0 {
		return nil
	}
	out := make([]domain.Modification, n)
	for i := range out {
		out[i] = getModification(d)
	}
	return out
}

func putRollingStock(e *Encbuf, r domain.RollingStockPart) {
	e.PutUvarintStr(r.Kind)
	e.PutUvarintStr(r.Designation)
	e.PutUvarintStr(r.Length)
	putStation(e, r.Destination)
	putStation(e, r.CurrentDestination)
	e.PutUvarintStr(r.DeparturePosition)
	e.PutUvarintStr(r.DepartureOrder)
}

func getRollingStock(d *Decbuf) domain.RollingStockPart {
	return domain.RollingStockPart{
		Kind:               d.UvarintStr(),
		Designation:        d.UvarintStr(),
		Length:             d.UvarintStr(),
		Destination:        getStation(d),
		CurrentDestination: getStation(d),
		DeparturePosition:  d.UvarintStr(),
		DepartureOrder:     d.UvarintStr(),
	}
}

func putWing(e *Encbuf, w domain.Wing) {
	putStation(e, w.Destination)
	putStation(e, w.CurrentDestination)
	putPlatforms(e, w.PlannedPlatform)
	putPlatforms(e, w.CurrentPlatform)
	putStations(e, w.PlannedStops)
	putStations(e, w.CurrentStops)
	e.PutBE32int(len(w.RollingStock))
	for _, r := range w.RollingStock {
		putRollingStock(e, r)
	}
	putModifications(e, w.Modifications)
}

func getWing(d *Decbuf) domain.Wing {
	w := domain.Wing{
		Destination:        getStation(d),
		CurrentDestination: getStation(d),
		PlannedPlatform:    getPlatforms(d),
		CurrentPlatform:    getPlatforms(d),
		PlannedStops:       getStations(d),
		CurrentStops:       getStations(d),
	}
	rsCount := int(d.Be32())
	for i := 0; i < rsCount; i++ {
		w.RollingStock = append(w.RollingStock, getRollingStock(d))
	}
	w.Modifications = getModifications(d)
	return w
}

func putWings(e *Encbuf, ws []domain.Wing) {
	e.PutBE32int(len(ws))
	for _, w := range ws {
		putWing(e, w)
	}
}

func getWings(d *Decbuf) []domain.Wing {
	n := int(d.Be32())
	if n == 0 {
		return nil
	}
	out := make([]domain.Wing, n)
	for i := range out {
		out[i] = getWing(d)
	}
	return out
}

// Travel, board and change tips are opaque to the core (spec.md §1,
// §6: "preserved on the Train but not acted on"); they are still
// serialized in full so a reload never drops client-visible data.

func putTravelTip(e *Encbuf, tt domain.TravelTip) {
	e.PutUvarintStr(tt.Code)
	putStations(e, tt.Stations)
}

func getTravelTip(d *Decbuf) domain.TravelTip {
	return domain.TravelTip{Code: d.UvarintStr(), Stations: getStations(d)}
}

func putOptionalPlatform(e *Encbuf, p *domain.Platform) {
	if p != nil {
		e.PutBool(true)
		putPlatform(e, *p)
	} else {
		e.PutBool(false)
	}
}

func getOptionalPlatform(d *Decbuf) *domain.Platform {
	if d.Bool() {
		p := getPlatform(d)
		return &p
	}
	return nil
}

func putBoardTip(e *Encbuf, bt domain.BoardTip) {
	e.PutUvarintStr(bt.TrainKind)
	putStation(e, bt.AlightStation)
	putStation(e, bt.Destination)
	putOptionalPlatform(e, bt.Platform)
	e.PutUvarintStr(bt.DepartureUTC)
}

func getBoardTip(d *Decbuf) domain.BoardTip {
	return domain.BoardTip{
		TrainKind:     d.UvarintStr(),
		AlightStation: getStation(d),
		Destination:   getStation(d),
		Platform:      getOptionalPlatform(d),
		DepartureUTC:  d.UvarintStr(),
	}
}

func putChangeTip(e *Encbuf, ct domain.ChangeTip) {
	putStation(e, ct.Destination)
	putStation(e, ct.ChangeStation)
}

func getChangeTip(d *Decbuf) domain.ChangeTip {
	return domain.ChangeTip{Destination: getStation(d), ChangeStation: getStation(d)}
}

func putTrain(e *Encbuf, station, trainNumber string, t *domain.Train) {
	e.PutUvarintStr(station)
	e.PutUvarintStr(trainNumber)
	e.PutUvarintStr(t.TripID)
	e.PutUvarintStr(t.TripDate)
	putStation(e, t.TripStation)
	putTime(e, t.MessageTS)
	e.PutUvarintStr(t.TransportKind.Code)
	e.PutUvarintStr(t.TransportKind.Name)
	e.PutUvarintStr(t.Carrier)
	e.PutUvarintStr(t.TrainName)
	e.PutUvarintStr(t.Status)
	putTime(e, t.PlannedDeparture)
	putTime(e, t.CurrentDeparture)
	e.PutBE32int(t.ExactDelaySeconds)
	e.PutBE32int(t.DampedDelaySeconds)

	putPlatforms(e, t.PlannedPlatform)
	putPlatforms(e, t.CurrentPlatform)
	putStations(e, t.PlannedDestinations)
	putStations(e, t.CurrentDestinations)
	putStations(e, t.PlannedShortRoute)
	putStations(e, t.CurrentShortRoute)

	e.PutBool(t.ReservationRequired)
	e.PutBool(t.SupplementRequired)
	e.PutBool(t.DoNotBoard)
	e.PutBool(t.SpecialTicket)
	e.PutBool(t.Shunting)
	e.PutBool(t.RearStaysBehind)
	e.PutBool(t.Synthetic)

	putWings(e, t.Wings)
	putModifications(e, t.Modifications)

	e.PutBE32int(len(t.TravelTips))
	for _, tt := range t.TravelTips {
		putTravelTip(e, tt)
	}
	e.PutBE32int(len(t.BoardTips))
	for _, bt := range t.BoardTips {
		putBoardTip(e, bt)
	}
	e.PutBE32int(len(t.ChangeTips))
	for _, ct := range t.ChangeTips {
		putChangeTip(e, ct)
	}

	if t.DepartedTimestamp != nil {
		e.PutBool(true)
		putTime(e, *t.DepartedTimestamp)
	} else {
		e.PutBool(false)
	}
}

func getTrain(d *Decbuf) (station, trainNumber string, t *domain.Train) {
	station = d.UvarintStr()
	trainNumber = d.UvarintStr()
	t = &domain.Train{}
	t.TripID = d.UvarintStr()
	t.TripDate = d.UvarintStr()
	t.TripStation = getStation(d)
	t.MessageTS = getTime(d)
	t.TransportKind.Code = d.UvarintStr()
	t.TransportKind.Name = d.UvarintStr()
	t.Carrier = d.UvarintStr()
	t.TrainName = d.UvarintStr()
	t.Status = d.UvarintStr()
	t.PlannedDeparture = getTime(d)
	t.CurrentDeparture = getTime(d)
	t.ExactDelaySeconds = int(int32(d.Be32()))
	t.DampedDelaySeconds = int(int32(d.Be32()))

	t.PlannedPlatform = getPlatforms(d)
	t.CurrentPlatform = getPlatforms(d)
	t.PlannedDestinations = getStations(d)
	t.CurrentDestinations = getStations(d)
	t.PlannedShortRoute = getStations(d)
	t.CurrentShortRoute = getStations(d)

	t.ReservationRequired = d.Bool()
	t.SupplementRequired = d.Bool()
	t.DoNotBoard = d.Bool()
	t.SpecialTicket = d.Bool()
	t.Shunting = d.Bool()
	t.RearStaysBehind = d.Bool()
	t.Synthetic = d.Bool()

	t.Wings = getWings(d)
	t.Modifications = getModifications(d)

	ttCount := int(d.Be32())
	for i := 0; i < ttCount; i++ {
		t.TravelTips = append(t.TravelTips, getTravelTip(d))
	}
	btCount := int(d.Be32())
	for i := 0; i < btCount; i++ {
		t.BoardTips = append(t.BoardTips, getBoardTip(d))
	}
	ctCount := int(d.Be32())
	for i := 0; i < ctCount; i++ {
		t.ChangeTips = append(t.ChangeTips, getChangeTip(d))
	}

	if d.Bool() {
		ts := getTime(d)
		t.DepartedTimestamp = &ts
	}
	return station, trainNumber, t
}
