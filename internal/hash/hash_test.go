/*
Copyright © 2025 the floodmask authors.
This file is part of floodmask.

floodmask is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

floodmask is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with floodmask.  If not, see <http://www.gnu.org/licenses/>.
*/

package hash

import (
	"math"
	"testing"
)

type config struct {
	Names   []string
	Seasons map[string][]int
	Level   float64
	Next    *config
}

func TestHash(t *testing.T) {
	a := config{
		Names:   []string{"flooded_area"},
		Seasons: map[string][]int{"TA": {4, 5}, "TB": {1, 2}, "AN": {1}},
		Level:   math.NaN(),
		Next:    &config{Level: 2},
	}
	b := config{
		Names:   []string{"flooded_area"},
		Seasons: map[string][]int{"AN": {1}, "TB": {1, 2}, "TA": {4, 5}},
		Level:   math.NaN(),
		Next:    &config{Level: 2},
	}
	if Hash(a) != Hash(b) {
		t.Errorf("equal values hash differently: %s != %s", Hash(a), Hash(b))
	}
	if len(Hash(a)) != 32 {
		t.Errorf("key length %d", len(Hash(a)))
	}
	b.Next.Level = 3
	if Hash(a) == Hash(b) {
		t.Error("different values hash equally")
	}
}
