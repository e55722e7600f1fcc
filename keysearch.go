// yhy523u
// Copyright (c) 2025 The yhy523u Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of yhy523u.
//
// yhy523u is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// yhy523u is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with yhy523u; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package yhy523u

import (
	"context"
	"errors"
	"fmt"
)

// KeyAttempt records one authentication attempt made while probing keys
type KeyAttempt struct {
	Err     error
	Key     Key
	KeyType KeyType
}

// KeySearchResult holds the keys found for a sector. A nil key means no
// candidate matched.
type KeySearchResult struct {
	KeyA     *Key
	KeyB     *Key
	Attempts []KeyAttempt
}

// FindKeys tries each candidate as key A, then each candidate as key B, on
// sector. Probing for a key type stops at the first match. Finding no key is
// not an error. DefaultKeys are tried when candidates is empty.
func (s *MIFARESession) FindKeys(sector uint8, candidates []Key) (*KeySearchResult, error) {
	return s.FindKeysContext(context.Background(), sector, candidates)
}

// FindKeysContext is FindKeys with context support. Errors other than a
// rejected key (card removed, transport failure) stop the search and are
// returned with the partial result.
func (s *MIFARESession) FindKeysContext(ctx context.Context, sector uint8, candidates []Key) (*KeySearchResult, error) {
	if err := validateAddress(sector, 0); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		candidates = DefaultKeys()
	}

	result := &KeySearchResult{}
	if _, err := s.SelectContext(ctx); err != nil {
		return result, fmt.Errorf("find keys: %w", err)
	}

	for _, keyType := range []KeyType{MIFAREKeyA, MIFAREKeyB} {
		found, err := s.searchKeyType(ctx, sector, keyType, candidates, result)
		if err != nil {
			return result, err
		}
		if found == nil {
			continue
		}
		if keyType == MIFAREKeyA {
			result.KeyA = found
		} else {
			result.KeyB = found
		}
	}
	return result, nil
}

func (s *MIFARESession) searchKeyType(
	ctx context.Context, sector uint8, keyType KeyType, candidates []Key, result *KeySearchResult,
) (*Key, error) {
	for _, key := range candidates {
		// A rejected key leaves the card unselected
		if !s.isSelected() {
			if _, err := s.SelectContext(ctx); err != nil {
				return nil, fmt.Errorf("find keys: reselect after failed attempt: %w", err)
			}
		}

		err := s.AuthenticateContext(ctx, sector, key, keyType)
		result.Attempts = append(result.Attempts, KeyAttempt{Key: key, KeyType: keyType, Err: err})
		if err == nil {
			debugf("sector %d key %s found: %s", sector, keyType, key)
			found := key
			return &found, nil
		}
		if !errors.Is(err, ErrAuthentication) {
			return nil, fmt.Errorf("find keys: %w", err)
		}
		debugf("sector %d invalid key %s: %s", sector, keyType, key)
	}
	return nil, nil
}
