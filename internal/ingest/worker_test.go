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

package ingest

import (
	"bytes"

	"github.com/klauspost/compress/gzip"
	"github.com/pingcap/check"

	"github.com/railfeed/dvsd/internal/metrics"
	"github.com/railfeed/dvsd/internal/store"
)

type workerSuite struct{}

var _ = check.Suite(&workerSuite{})

func gzipString(s string) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, _ = w.Write([]byte(s))
	_ = w.Close()
	return buf.Bytes()
}

func (s *workerSuite) TestProcessAppliesDecodedTrainToStore(c *check.C) {
	st := store.New(metrics.NewForTesting())
	q := NewQueue()
	w := NewWorker(q, st, metrics.NewForTesting())

	w.process(Payload{Subject: "feed.test", Data: gzipString(sampleFeedMessage)})

	entries := st.ByStation("RTD")
	c.Assert(entries, check.HasLen, 1)
}

func (s *workerSuite) TestProcessContinuesPastMalformedPayload(c *check.C) {
	st := store.New(metrics.NewForTesting())
	q := NewQueue()
	w := NewWorker(q, st, metrics.NewForTesting())

	w.process(Payload{Subject: "feed.bad", Data: []byte("not gzip")})
	c.Assert(st.StationCount(), check.Equals, 0)
}

const sampleFeedMessage = `<?xml version="1.0" encoding="UTF-8"?>
<ReisInformatieProductDVS xmlns="urn:ndov:cdm:trein:reisinformatie:data:2" TimeStamp="2026-08-01T08:00:00+02:00">
  <DynamischeVertrekStaat>
    <RitId>1234</RitId>
    <RitDatum>2026-08-01</RitDatum>
    <RitStation>
      <StationCode>RTD</StationCode>
      <KorteNaam>Rtd</KorteNaam>
      <MiddelNaam>Rotterdam</MiddelNaam>
      <LangeNaam>Rotterdam Centraal</LangeNaam>
      <UICCode>8400530</UICCode>
      <Type>knooppuntIntercitystation</Type>
    </RitStation>
    <Trein>
      <TreinNummer>1234</TreinNummer>
      <TreinSoort Code="IC">Intercity</TreinSoort>
      <Vervoerder>NS</Vervoerder>
      <TreinStatus>1</TreinStatus>
      <VertrekTijd InfoStatus="Gepland">2026-08-01T08:05:00+02:00</VertrekTijd>
      <VertrekTijd InfoStatus="Actueel">2026-08-01T08:07:00+02:00</VertrekTijd>
      <TreinVertrekSpoor InfoStatus="Actueel">
        <SpoorNummer>4</SpoorNummer>
      </TreinVertrekSpoor>
      <TreinEindBestemming InfoStatus="Actueel">
        <StationCode>GN</StationCode>
        <LangeNaam>Groningen</LangeNaam>
      </TreinEindBestemming>
      <TreinVleugel>
        <TreinVleugelEindBestemming InfoStatus="Actueel">
          <StationCode>GN</StationCode>
          <LangeNaam>Groningen</LangeNaam>
        </TreinVleugelEindBestemming>
      </TreinVleugel>
    </Trein>
  </DynamischeVertrekStaat>
</ReisInformatieProductDVS>`
