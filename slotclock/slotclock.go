// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package slotclock converts between slot numbers and wall-clock time for
// networks made of a Byron era followed by a Shelley era, each with a fixed
// slot length.
package slotclock

import (
	"time"
)

// SlotTimeProvider defines the interface for slot/time conversion
type SlotTimeProvider interface {
	SlotToTime(slot uint64) time.Time
	TimeToSlot(t time.Time) uint64
}

// SlotToTime returns the wall-clock start time of the given slot
func (n *Network) SlotToTime(slot uint64) time.Time {
	byronSlots := min(slot, n.ShelleyInitialSlot)
	var shelleySlots uint64
	if slot > n.ShelleyInitialSlot {
		shelleySlots = slot - n.ShelleyInitialSlot
	}
	// All arithmetic is done in whole milliseconds
	ms := n.Epoch0*1000 +
		byronSlots*n.ByronSlotSeconds*1000 +
		shelleySlots*n.ShelleySlotSeconds*1000
	// nolint:gosec
	// Slot times stay well within the int64 range for any realistic slot
	return time.UnixMilli(int64(ms)).UTC()
}

// TimeToSlot returns the slot containing the given time. Only times at or
// after the start of the Shelley era are supported; earlier times resolve
// to the first Shelley slot.
func (n *Network) TimeToSlot(t time.Time) uint64 {
	ms := t.UnixMilli()
	// nolint:gosec
	shelleyStartMs := int64(
		n.Epoch0*1000 + n.ShelleyInitialSlot*n.ByronSlotSeconds*1000,
	)
	if ms <= shelleyStartMs {
		return n.ShelleyInitialSlot
	}
	// nolint:gosec
	slotMs := int64(n.ShelleySlotSeconds * 1000)
	// nolint:gosec
	return uint64((ms-shelleyStartMs)/slotMs) + n.ShelleyInitialSlot
}

// ShelleyStart returns the wall-clock time at which the Shelley era begins
func (n *Network) ShelleyStart() time.Time {
	return n.SlotToTime(n.ShelleyInitialSlot)
}
