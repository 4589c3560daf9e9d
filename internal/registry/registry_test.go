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

package registry

import (
	"sync"
	"testing"
)

func TestRegisterLookupBeforeFreeze(t *testing.T) {
	d := New[string, int]()
	d.Register("a", 1)
	d.Register("b", 2)
	v, ok := d.Lookup("a")
	if !ok || v != 1 {
		t.Fatalf("Lookup(a) = %d, %v, want 1, true", v, ok)
	}
	if _, ok := d.Lookup("missing"); ok {
		t.Fatal("Lookup of an unregistered key should report not-found")
	}
	if d.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", d.Len())
	}
}

func TestRegisterOverwrites(t *testing.T) {
	d := New[string, int]()
	d.Register("a", 1)
	d.Register("a", 2)
	v, _ := d.Lookup("a")
	if v != 2 {
		t.Fatalf("second Register(a, 2) should overwrite, got %d", v)
	}
	if d.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after overwrite", d.Len())
	}
}

func TestLookupAfterFreeze(t *testing.T) {
	d := New[string, int]()
	d.Register("a", 1)
	d.Freeze()
	v, ok := d.Lookup("a")
	if !ok || v != 1 {
		t.Fatalf("Lookup(a) after Freeze = %d, %v, want 1, true", v, ok)
	}
}

func TestRegisterAfterFreezePanics(t *testing.T) {
	d := New[string, int]()
	d.Freeze()
	defer func() {
		if recover() == nil {
			t.Fatal("Register after Freeze should panic")
		}
	}()
	d.Register("a", 1)
}

func TestKeysSnapshot(t *testing.T) {
	d := New[string, int]()
	d.Register("a", 1)
	d.Register("b", 2)
	keys := d.Keys()
	if len(keys) != 2 {
		t.Fatalf("Keys() returned %d entries, want 2", len(keys))
	}
}

func TestConcurrentLookupAfterFreeze(t *testing.T) {
	d := New[string, int]()
	for i := 0; i < 100; i++ {
		d.Register(string(rune('a'+i%26)), i)
	}
	d.Freeze()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				d.Lookup("a")
				d.Len()
			}
		}()
	}
	wg.Wait()
}
