package resolvers

import (
	"net"
	"testing"
	"time"

	"github.com/asyncresolve/resolvers/internal/wiremsg"
)

func TestDNSWeightToSlotWeight(t *testing.T) {
	cases := []struct {
		in   uint16
		want int
	}{
		{0, 0},
		{1, 1},
		{256, 1},
		{257, 2},
		{65535, 256},
	}

	for _, tc := range cases {
		if got := dnsWeightToSlotWeight(tc.in); got != tc.want {
			t.Errorf("dnsWeightToSlotWeight(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestMaterializeSRVBindsSlotWithGlueAddress(t *testing.T) {
	ns := &fakeNameserver{name: "ns1"}
	sec := newTestSection(t, testConfig(), ns)

	slots := []*Slot{{}, {}}
	sr, err := NewSRVRequest(sec, "_http._tcp.example.org", slots)
	if err != nil {
		t.Fatalf("NewSRVRequest: %v", err)
	}

	now := time.Now()
	sec.tick(now)

	id := queryIDFromBytes(ns.lastSent())
	data := buildResponse(t, id, 0, false, "_http._tcp.example.org", wiremsg.TypeSRV,
		[]testRR{
			{Name: "_http._tcp.example.org", Type: wiremsg.TypeSRV, TTL: 60,
				SRV: &testSRVData{Priority: 10, Weight: 5, Port: 80, Target: "backend.example.org"}},
		},
		[]testRR{
			{Name: "backend.example.org", Type: wiremsg.TypeA, TTL: 60, Addr: net.ParseIP("10.0.0.1")},
		},
	)

	if err := sec.ProcessResponse(0, data); err != nil {
		t.Fatalf("ProcessResponse: %v", err)
	}

	slot := slots[0]
	if !slot.Bound() {
		t.Fatal("slots[0] should be bound after a SRV answer with attached glue")
	}
	if slot.Port != 80 {
		t.Errorf("Port = %d, want 80", slot.Port)
	}
	if slot.Weight != 1 {
		t.Errorf("Weight = %d, want 1 (ceil(5/256))", slot.Weight)
	}
	if !slot.Address.Equal(net.ParseIP("10.0.0.1")) {
		t.Errorf("Address = %v, want 10.0.0.1", slot.Address)
	}
	if !slot.dnsResolutionDisabled {
		t.Error("dnsResolutionDisabled should be true: the glue record supplied the address directly")
	}
	if slot.slotReq != nil {
		t.Error("slotReq should be nil: no per-slot DNS resolution was started when glue was attached")
	}
	if slots[1].Bound() {
		t.Error("slots[1] should remain unbound: only one SRV target was returned")
	}

	_ = sr
}

func TestMaterializeSRVStartsPerSlotResolutionWithoutGlue(t *testing.T) {
	ns := &fakeNameserver{name: "ns1"}
	sec := newTestSection(t, testConfig(), ns)

	slots := []*Slot{{}}
	if _, err := NewSRVRequest(sec, "_http._tcp.example.org", slots); err != nil {
		t.Fatalf("NewSRVRequest: %v", err)
	}

	now := time.Now()
	sec.tick(now)

	id := queryIDFromBytes(ns.lastSent())
	data := buildResponse(t, id, 0, false, "_http._tcp.example.org", wiremsg.TypeSRV,
		[]testRR{
			{Name: "_http._tcp.example.org", Type: wiremsg.TypeSRV, TTL: 60,
				SRV: &testSRVData{Priority: 10, Weight: 1, Port: 443, Target: "nobody-sent-glue.example.org"}},
		}, nil)

	if err := sec.ProcessResponse(0, data); err != nil {
		t.Fatalf("ProcessResponse: %v", err)
	}

	slot := slots[0]
	if !slot.Bound() {
		t.Fatal("slot should be bound to the SRV target even without glue")
	}
	if slot.dnsResolutionDisabled {
		t.Error("dnsResolutionDisabled should be false: no glue was attached")
	}
	if slot.slotReq == nil {
		t.Error("slotReq should be set: materializeSRV should have started a per-slot A/AAAA resolution")
	}
}

func TestUnbindSlotsForClearsEvictedTarget(t *testing.T) {
	sec := newTestSection(t, testConfig(), &fakeNameserver{name: "ns1"})

	slots := []*Slot{{}}
	sr, err := NewSRVRequest(sec, "_http._tcp.example.org", slots)
	if err != nil {
		t.Fatalf("NewSRVRequest: %v", err)
	}

	res := sr.requester.resolution
	slots[0].target = "backend.example.org"
	slots[0].Port = 80
	slots[0].Address = net.ParseIP("10.0.0.1")
	slots[0].down = false

	evicted := &AnswerItem{Type: RecordSRV, Target: "backend.example.org", Port: 80}
	sec.unbindSlotsFor(res, evicted)

	if slots[0].Bound() {
		t.Error("slot should be unbound after its backing SRV item was evicted")
	}
	if slots[0].Address != nil {
		t.Error("Address should be cleared on unbind")
	}
	if !slots[0].down {
		t.Error("an unbound slot should be marked down")
	}
}
