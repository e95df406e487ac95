// Copyright 2021 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package remover

// Error reports that planning or deletion could not proceed safely: an
// expiry date already in the past when the bundle is created, a removal
// with no objects to back up, or a newly added reference caught by the
// post-deletion check. Missing configuration is not reported through
// this type. It is user-recoverable — the caller inspects Msg and
// decides whether to retry.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return "remover: " + e.Msg }
