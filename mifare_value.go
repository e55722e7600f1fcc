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
	"encoding/binary"
	"fmt"
)

// valueOp describes one of the balance commands
type valueOp struct {
	kind      error
	name      string
	cmd       Command
	hasAmount bool
}

var (
	opInitBalance     = valueOp{kind: ErrInitBalance, name: "init balance", cmd: CmdMifareInitValue, hasAmount: true}
	opReadBalance     = valueOp{kind: ErrReadBalance, name: "read balance", cmd: CmdMifareReadBalance}
	opIncreaseBalance = valueOp{kind: ErrIncreaseBalance, name: "increase balance", cmd: CmdMifareIncrement, hasAmount: true}
	opDecreaseBalance = valueOp{kind: ErrDecreaseBalance, name: "decrease balance", cmd: CmdMifareDecrement, hasAmount: true}
)

// valueCommand authenticates sector with key A and runs op on block. The
// response data is returned as sent by the reader.
func (s *MIFARESession) valueCommand(
	ctx context.Context, op valueOp, sector uint8, key Key, block uint8, amount uint16,
) ([]byte, error) {
	if err := validateAddress(sector, block); err != nil {
		return nil, err
	}
	if err := s.AuthenticateContext(ctx, sector, key, MIFAREKeyA); err != nil {
		return nil, err
	}

	payload := []byte{blockAddress(sector, block)}
	if op.hasAmount {
		payload = binary.LittleEndian.AppendUint16(payload, amount)
	}

	status, data, err := s.device.SendReceiveContext(ctx, op.cmd, payload)
	if err != nil {
		s.reset()
		return nil, fmt.Errorf("%s sector %d block %d: %w", op.name, sector, block, err)
	}
	if status != 0 {
		s.reset()
		return nil, newStatusError(op.kind, fmt.Sprintf("%s sector %d block %d", op.name, sector, block),
			op.cmd, status)
	}
	return data, nil
}

// InitBalance formats block as a value block holding amount
func (s *MIFARESession) InitBalance(sector uint8, key Key, block uint8, amount uint16) ([]byte, error) {
	return s.valueCommand(context.Background(), opInitBalance, sector, key, block, amount)
}

// InitBalanceContext is InitBalance with context support
func (s *MIFARESession) InitBalanceContext(ctx context.Context, sector uint8, key Key, block uint8, amount uint16) ([]byte, error) {
	return s.valueCommand(ctx, opInitBalance, sector, key, block, amount)
}

// ReadBalance reads the value stored in block
func (s *MIFARESession) ReadBalance(sector uint8, key Key, block uint8) ([]byte, error) {
	return s.valueCommand(context.Background(), opReadBalance, sector, key, block, 0)
}

// ReadBalanceContext is ReadBalance with context support
func (s *MIFARESession) ReadBalanceContext(ctx context.Context, sector uint8, key Key, block uint8) ([]byte, error) {
	return s.valueCommand(ctx, opReadBalance, sector, key, block, 0)
}

// IncreaseBalance adds amount to the value in block
func (s *MIFARESession) IncreaseBalance(sector uint8, key Key, block uint8, amount uint16) ([]byte, error) {
	return s.valueCommand(context.Background(), opIncreaseBalance, sector, key, block, amount)
}

// IncreaseBalanceContext is IncreaseBalance with context support
func (s *MIFARESession) IncreaseBalanceContext(ctx context.Context, sector uint8, key Key, block uint8, amount uint16) ([]byte, error) {
	return s.valueCommand(ctx, opIncreaseBalance, sector, key, block, amount)
}

// DecreaseBalance subtracts amount from the value in block
func (s *MIFARESession) DecreaseBalance(sector uint8, key Key, block uint8, amount uint16) ([]byte, error) {
	return s.valueCommand(context.Background(), opDecreaseBalance, sector, key, block, amount)
}

// DecreaseBalanceContext is DecreaseBalance with context support
func (s *MIFARESession) DecreaseBalanceContext(ctx context.Context, sector uint8, key Key, block uint8, amount uint16) ([]byte, error) {
	return s.valueCommand(ctx, opDecreaseBalance, sector, key, block, amount)
}
