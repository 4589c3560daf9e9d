// Copyright (C) 2024 Arolla authors.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package frame

import (
	"testing"

	"github.com/arolla-go/arolla/internal/fingerprint"
	"github.com/arolla-go/arolla/qtype"
)

func fp(tag string) fingerprint.Fingerprint {
	b := fingerprint.NewBuilder()
	b.WriteString(tag)
	return b.Sum()
}

func TestAllocatorAllocateClaimsFreshSlots(t *testing.T) {
	b := NewBuilder()
	a := NewAllocator(b, nil, false)
	s1 := a.Allocate(fp("n1"), qtype.Int64, true)
	s2 := a.Allocate(fp("n2"), qtype.Int64, true)
	if s1 == s2 {
		t.Fatal("two live allocations with no recycling opportunity must get distinct slots")
	}
	got, ok := a.SlotOf(fp("n1"))
	if !ok || got != s1 {
		t.Fatal("SlotOf must return the slot previously allocated for a fingerprint")
	}
}

func TestAllocatorRecyclesAfterConsumed(t *testing.T) {
	b := NewBuilder()
	a := NewAllocator(b, nil, false)
	producer := fp("producer")
	consumer := fp("consumer")
	a.SetConsumerCount(producer, []fingerprint.Fingerprint{consumer})
	s1 := a.Allocate(producer, qtype.Int64, true)
	a.Consumed(producer, consumer)

	other := fp("other")
	s2 := a.Allocate(other, qtype.Int64, true)
	if s1 != s2 {
		t.Fatal("a fully-consumed recyclable slot of the same qtype must be reused by the next allocation")
	}
}

func TestAllocatorDoesNotRecycleUntilAllConsumersDone(t *testing.T) {
	b := NewBuilder()
	a := NewAllocator(b, nil, false)
	producer := fp("producer")
	c1, c2 := fp("c1"), fp("c2")
	a.SetConsumerCount(producer, []fingerprint.Fingerprint{c1, c2})
	s1 := a.Allocate(producer, qtype.Int64, true)
	a.Consumed(producer, c1)

	other := fp("other")
	s2 := a.Allocate(other, qtype.Int64, true)
	if s1 == s2 {
		t.Fatal("a slot must not be recycled while a consumer is still outstanding")
	}
	a.Consumed(producer, c2)
	third := fp("third")
	s3 := a.Allocate(third, qtype.Int64, true)
	if s3 != s1 {
		t.Fatal("once the last consumer reads it, the slot must become recyclable")
	}
}

func TestAllocatorNonRecyclableNeverReused(t *testing.T) {
	b := NewBuilder()
	a := NewAllocator(b, nil, false)
	producer := fp("producer")
	consumer := fp("consumer")
	a.SetConsumerCount(producer, []fingerprint.Fingerprint{consumer})
	s1 := a.Allocate(producer, qtype.Int64, false)
	a.Consumed(producer, consumer)

	other := fp("other")
	s2 := a.Allocate(other, qtype.Int64, true)
	if s1 == s2 {
		t.Fatal("a non-recyclable allocation (leaf/literal) must never be reused")
	}
}

func TestAllocatorDoesNotRecycleInputSlotsUnlessOverwriteInputs(t *testing.T) {
	producer := fp("producer")
	consumer := fp("consumer")

	b := NewBuilder()
	inputSlot := b.Reserve(qtype.Int64)
	a := NewAllocator(b, []Slot{inputSlot}, false)
	a.BindExisting(producer, inputSlot)
	a.SetConsumerCount(producer, []fingerprint.Fingerprint{consumer})
	a.Consumed(producer, consumer)

	other := fp("other")
	s := a.Allocate(other, qtype.Int64, true)
	if s == inputSlot {
		t.Fatal("an input slot must not be recycled when overwriteInputs is false")
	}
}

func TestAllocatorRecyclesInputSlotsWhenOverwriteInputsSet(t *testing.T) {
	producer := fp("producer")
	consumer := fp("consumer")

	b := NewBuilder()
	inputSlot := b.Reserve(qtype.Int64)
	a := NewAllocator(b, []Slot{inputSlot}, true)
	a.BindExisting(producer, inputSlot)
	a.SetConsumerCount(producer, []fingerprint.Fingerprint{consumer})
	a.Consumed(producer, consumer)

	other := fp("other")
	s := a.Allocate(other, qtype.Int64, true)
	if s != inputSlot {
		t.Fatal("an input slot must be recyclable once overwriteInputs is true")
	}
}

func TestAllocatorAliasMergesConsumerSets(t *testing.T) {
	b := NewBuilder()
	a := NewAllocator(b, nil, false)
	original := fp("original")
	s := a.Allocate(original, qtype.Int64, true)

	aliasFP := fp("alias")
	consumer := fp("consumer")
	a.SetConsumerCount(aliasFP, []fingerprint.Fingerprint{consumer})
	a.Alias(aliasFP, original)

	got, ok := a.SlotOf(aliasFP)
	if !ok || got != s {
		t.Fatal("Alias must bind the alias fingerprint to the existing slot")
	}
	// Consuming only the alias's registered consumer must free the slot,
	// since Alias merges the alias's consumer set into the original's.
	a.Consumed(original, consumer)
	other := fp("other")
	s2 := a.Allocate(other, qtype.Int64, true)
	if s2 != s {
		t.Fatal("after the merged consumer set is drained, the slot must become recyclable")
	}
}

func TestAllocatorLiveSubslotBlocksRecycling(t *testing.T) {
	b := NewBuilder()
	a := NewAllocator(b, nil, false)
	producer := fp("producer")
	consumer := fp("consumer")
	a.SetConsumerCount(producer, []fingerprint.Fingerprint{consumer})
	s1 := a.Allocate(producer, qtype.Int64, true)
	a.TakeSubslotView(s1)
	a.Consumed(producer, consumer)

	other := fp("other")
	s2 := a.Allocate(other, qtype.Int64, true)
	if s1 == s2 {
		t.Fatal("a slot with a live subslot view must not be recycled")
	}

	a.ReleaseSubslotView(s1)
	third := fp("third")
	s3 := a.Allocate(third, qtype.Int64, true)
	if s3 != s1 {
		t.Fatal("once the subslot view is released, the slot must become recyclable again")
	}
}

func TestAllocatorBindExistingDoesNotAllocate(t *testing.T) {
	b := NewBuilder()
	a := NewAllocator(b, nil, false)
	leafSlot := Slot{Type: qtype.Int64, Offset: 0}
	leafFP := fp("leaf")
	a.BindExisting(leafFP, leafSlot)
	got, ok := a.SlotOf(leafFP)
	if !ok || got != leafSlot {
		t.Fatal("BindExisting must record the given slot without reserving new space")
	}
	if b.Build().NumSlots() != 0 {
		t.Fatal("BindExisting must not reserve a slot in the underlying builder")
	}
}
