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

// Command floodmask is a command-line interface for building flood mask
// cubes from raster elevation ensembles.
package main

import (
	"fmt"
	"os"

	"github.com/spatialmodel/floodmask/floodmaskutil"
)

func main() {
	if err := floodmaskutil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
