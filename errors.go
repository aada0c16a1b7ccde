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

package floodmask

import "fmt"

// ConfigError reports a run configuration value that cannot be used.
type ConfigError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("floodmask: configuration variable %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("floodmask: configuration variable %s=%v %s", e.Field, e.Value, e.Reason)
}

// ResourceError reports an input file or directory that is missing or
// unreadable.
type ResourceError struct {
	What string
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("floodmask: %s %s not found", e.What, e.Path)
	}
	return fmt.Sprintf("floodmask: %s %s: %v", e.What, e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }
