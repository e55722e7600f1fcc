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
	"bytes"
	"context"
	"fmt"
)

// WriteBlockVerified writes data to block and reads it back. It does not
// retry: a mismatch fails with ErrVerification and the caller decides what
// to do.
func (s *MIFARESession) WriteBlockVerified(sector uint8, key Key, block uint8, data []byte) error {
	return s.WriteBlockVerifiedContext(context.Background(), sector, key, block, data)
}

// WriteBlockVerifiedContext is WriteBlockVerified with context support
func (s *MIFARESession) WriteBlockVerifiedContext(
	ctx context.Context, sector uint8, key Key, block uint8, data []byte,
) error {
	if block == trailerBlock {
		// Trailer keys read back as zeros
		return fmt.Errorf("%w: sector trailers cannot be verified", ErrInvalidParameter)
	}
	if err := s.WriteBlockContext(ctx, sector, key, block, data); err != nil {
		return err
	}

	readData, err := s.ReadBlockContext(ctx, sector, block)
	if err != nil {
		return fmt.Errorf("verify sector %d block %d: %w", sector, block, err)
	}
	if !bytes.Equal(readData, data) {
		return fmt.Errorf("%w: sector %d block %d reads back % X", ErrVerification, sector, block, readData)
	}
	return nil
}
