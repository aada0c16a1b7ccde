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

// Package floodmask computes submersion mask cubes for ensembles of
// simulated digital terrain models. For each simulation it compares the
// terrain, optionally resampled onto a rotated regular mesh, with water
// levels chosen by an index rule and writes the resulting masks to a
// compressed netCDF file.
package floodmask

// Version is the version of the floodmask library.
const Version = "0.1.0"
