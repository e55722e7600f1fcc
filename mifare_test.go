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
	"testing"

	"github.com/mdeverdelhan/yhy523u/internal/frame"
	testutil "github.com/mdeverdelhan/yhy523u/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMIFARESession_Select(t *testing.T) {
	t.Parallel()

	t.Run("Classic_1K", func(t *testing.T) {
		t.Parallel()
		session, reader := newSimSession(t, testutil.NewVirtualMIFARE1K(nil))

		card, err := session.Select()
		require.NoError(t, err)
		assert.Equal(t, CardTypeClassic1K, card.Type)
		assert.Equal(t, testutil.TestMIFARE1KUID, card.Serial)
		assert.Equal(t, "12345678", card.UID())
		assert.Equal(t, StateSelected, session.State())
		assert.Same(t, card, session.Card())

		assert.Equal(t, 1, reader.Calls(testutil.CmdMifareSelect))
		assert.Equal(t, 0, reader.Calls(testutil.CmdMifareULSelect))

		requests := reader.Requests()
		require.Len(t, requests, 3)
		assert.Equal(t, []byte{byte(RequestAll)}, requests[0].Payload)
		assert.Equal(t, []byte{0x04}, requests[1].Payload)
		assert.Equal(t, testutil.TestMIFARE1KUID, requests[2].Payload)
	})

	t.Run("Ultralight", func(t *testing.T) {
		t.Parallel()
		session, reader := newSimSession(t, testutil.NewVirtualUltralight(nil))

		card, err := session.Select()
		require.NoError(t, err)
		assert.Equal(t, CardTypeUltralight, card.Type)
		assert.Equal(t, testutil.TestUltralightUID, card.Serial)
		assert.Equal(t, 1, reader.Calls(testutil.CmdMifareULSelect))
		assert.Equal(t, 0, reader.Calls(testutil.CmdMifareSelect))
	})

	t.Run("No_Card", func(t *testing.T) {
		t.Parallel()
		session, reader := newSimSession(t, nil)

		card, err := session.Select()
		require.ErrorIs(t, err, ErrNoCard)
		assert.Nil(t, card)
		assert.Equal(t, StateIdle, session.State())
		assert.Nil(t, session.Card())

		status, ok := StatusCode(err)
		require.True(t, ok)
		assert.Equal(t, StatusRequestFailure, status)
		assert.Equal(t, 0, reader.Calls(testutil.CmdMifareAnticollision))
	})

	t.Run("Anticollision_Failure", func(t *testing.T) {
		t.Parallel()
		session, reader := newSimSession(t, testutil.NewVirtualMIFARE1K(nil))
		reader.Hook = func(req testutil.Request) ([]byte, bool) {
			if req.Command == testutil.CmdMifareAnticollision {
				return encodeResponse(req.Command, 21), true
			}
			return nil, false
		}

		_, err := session.Select()
		require.ErrorIs(t, err, ErrAnticollision)
		assert.Equal(t, StateIdle, session.State())
	})

	t.Run("Select_Failure", func(t *testing.T) {
		t.Parallel()
		session, reader := newSimSession(t, testutil.NewVirtualMIFARE1K(nil))
		reader.Hook = func(req testutil.Request) ([]byte, bool) {
			if req.Command == testutil.CmdMifareSelect {
				return encodeResponse(req.Command, 20), true
			}
			return nil, false
		}

		_, err := session.Select()
		require.ErrorIs(t, err, ErrSelect)
		assert.Equal(t, StateIdle, session.State())
	})

	t.Run("Request_Idle_Skips_Halted_Card", func(t *testing.T) {
		t.Parallel()
		device, _ := newSimDevice(t, testutil.NewVirtualMIFARE1K(nil))
		require.NoError(t, WithRequestMode(RequestIdle)(device))
		session := NewMIFARESession(device)

		_, err := session.Select()
		require.NoError(t, err)
		status, _, err := session.Halt()
		require.NoError(t, err)
		assert.Equal(t, byte(0), status)
		assert.Equal(t, StateHalted, session.State())

		_, err = session.Select()
		require.ErrorIs(t, err, ErrNoCard)
	})

	t.Run("Request_All_Wakes_Halted_Card", func(t *testing.T) {
		t.Parallel()
		session, _ := newSimSession(t, testutil.NewVirtualMIFARE1K(nil))

		_, err := session.Select()
		require.NoError(t, err)
		_, _, err = session.Halt()
		require.NoError(t, err)

		_, err = session.Select()
		require.NoError(t, err)
	})
}

func encodeResponse(cmd uint16, status byte, data ...byte) []byte {
	return frame.Encode(cmd, append([]byte{status}, data...))
}

func TestMIFARESession_Halt(t *testing.T) {
	t.Parallel()

	session, reader := newSimSession(t, testutil.NewVirtualMIFARE1K(nil))
	reader.Hook = func(req testutil.Request) ([]byte, bool) {
		if req.Command == testutil.CmdMifareHalt {
			return encodeResponse(req.Command, 10, 0x01), true
		}
		return nil, false
	}

	_, err := session.Select()
	require.NoError(t, err)

	status, data, err := session.Halt()
	require.NoError(t, err, "a failed halt is reported through the status")
	assert.Equal(t, byte(10), status)
	assert.Equal(t, []byte{0x01}, data)
	assert.Equal(t, StateHalted, session.State())

	err = session.Authenticate(1, TransportKey, MIFAREKeyA)
	require.ErrorIs(t, err, ErrNotSelected)
}

func TestMIFARESession_Authenticate(t *testing.T) {
	t.Parallel()

	t.Run("Requires_Selection", func(t *testing.T) {
		t.Parallel()
		session, reader := newSimSession(t, testutil.NewVirtualMIFARE1K(nil))

		err := session.Authenticate(1, TransportKey, MIFAREKeyA)
		require.ErrorIs(t, err, ErrNotSelected)
		assert.Empty(t, reader.Requests())
	})

	t.Run("Key_A_And_B", func(t *testing.T) {
		t.Parallel()
		card := testutil.NewVirtualMIFARE1K(nil)
		keyB := Key{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
		card.SetSectorKeys(2, TransportKey, keyB)
		session, reader := newSimSession(t, card)

		_, err := session.Select()
		require.NoError(t, err)

		require.NoError(t, session.Authenticate(2, TransportKey, MIFAREKeyA))
		sector, keyType, ok := session.AuthenticatedSector()
		require.True(t, ok)
		assert.Equal(t, uint8(2), sector)
		assert.Equal(t, MIFAREKeyA, keyType)

		require.NoError(t, session.Authenticate(2, keyB, MIFAREKeyB))
		_, keyType, _ = session.AuthenticatedSector()
		assert.Equal(t, MIFAREKeyB, keyType)

		requests := reader.Requests()
		last := requests[len(requests)-1]
		assert.Equal(t, append([]byte{0x61, 0x08}, keyB[:]...), last.Payload)
	})

	t.Run("Wrong_Key_Returns_To_Idle", func(t *testing.T) {
		t.Parallel()
		session, _ := newSimSession(t, testutil.NewVirtualMIFARE1K(nil))

		_, err := session.Select()
		require.NoError(t, err)

		err = session.Authenticate(1, NDEFKey, MIFAREKeyA)
		require.ErrorIs(t, err, ErrAuthentication)
		status, ok := StatusCode(err)
		require.True(t, ok)
		assert.Equal(t, StatusAuthenticateFailure, status)
		assert.Equal(t, StateIdle, session.State())

		err = session.Authenticate(1, TransportKey, MIFAREKeyA)
		require.ErrorIs(t, err, ErrNotSelected)
	})

	t.Run("Invalid_Parameters", func(t *testing.T) {
		t.Parallel()
		session, _ := newSimSession(t, testutil.NewVirtualMIFARE1K(nil))
		_, err := session.Select()
		require.NoError(t, err)

		require.ErrorIs(t, session.Authenticate(64, TransportKey, MIFAREKeyA), ErrInvalidParameter)
		require.ErrorIs(t, session.Authenticate(1, TransportKey, KeyType(0x62)), ErrInvalidParameter)
		assert.Equal(t, StateSelected, session.State())
	})
}

func TestMIFARESession_ReadBlock(t *testing.T) {
	t.Parallel()

	t.Run("Requires_Authentication", func(t *testing.T) {
		t.Parallel()
		session, _ := newSimSession(t, testutil.NewVirtualMIFARE1K(nil))
		_, err := session.Select()
		require.NoError(t, err)

		_, err = session.ReadBlock(1, 0)
		require.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("Requires_Same_Sector", func(t *testing.T) {
		t.Parallel()
		session, _ := newSimSession(t, testutil.NewVirtualMIFARE1K(nil))
		_, err := session.Select()
		require.NoError(t, err)
		require.NoError(t, session.Authenticate(1, TransportKey, MIFAREKeyA))

		_, err = session.ReadBlock(2, 0)
		require.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("Reads_16_Bytes", func(t *testing.T) {
		t.Parallel()
		card := testutil.NewVirtualMIFARE1K(nil)
		want := bytes.Repeat([]byte{0xAA}, BlockSize)
		require.NoError(t, card.WriteBlock(6, want))
		session, reader := newSimSession(t, card)

		_, err := session.Select()
		require.NoError(t, err)
		require.NoError(t, session.Authenticate(1, TransportKey, MIFAREKeyA))

		data, err := session.ReadBlock(1, 2)
		require.NoError(t, err)
		assert.Equal(t, want, data)
		assert.Equal(t, []byte{6}, blockReads(reader))
	})

	t.Run("Block_Out_Of_Range", func(t *testing.T) {
		t.Parallel()
		session, _ := newSimSession(t, testutil.NewVirtualMIFARE1K(nil))
		_, err := session.ReadBlock(1, 4)
		require.ErrorIs(t, err, ErrInvalidParameter)
	})
}

func TestMIFARESession_ReadSector(t *testing.T) {
	t.Parallel()

	t.Run("Default_Blocks", func(t *testing.T) {
		t.Parallel()
		card := testutil.NewVirtualMIFARE1K(nil)
		for block := 4; block < 7; block++ {
			require.NoError(t, card.WriteBlock(block, bytes.Repeat([]byte{byte(block)}, BlockSize)))
		}
		session, reader := newSimSession(t, card)
		_, err := session.Select()
		require.NoError(t, err)

		data, err := session.ReadSector(1, TransportKey)
		require.NoError(t, err)
		require.Len(t, data, 3*BlockSize)
		assert.Equal(t, byte(4), data[0])
		assert.Equal(t, byte(5), data[BlockSize])
		assert.Equal(t, byte(6), data[2*BlockSize])
		assert.Equal(t, []byte{4, 5, 6}, blockReads(reader))
	})

	t.Run("Block_Order_Kept", func(t *testing.T) {
		t.Parallel()
		session, reader := newSimSession(t, testutil.NewVirtualMIFARE1K(nil))
		_, err := session.Select()
		require.NoError(t, err)

		_, err = session.ReadSector(3, TransportKey, 2, 0)
		require.NoError(t, err)
		assert.Equal(t, []byte{14, 12}, blockReads(reader))
	})

	t.Run("Aborts_On_Block_Failure", func(t *testing.T) {
		t.Parallel()
		card := testutil.NewVirtualMIFARE1K(nil)
		card.FailRead(1, testutil.StatusReadBlockFailure)
		session, reader := newSimSession(t, card)
		_, err := session.Select()
		require.NoError(t, err)

		data, err := session.ReadSector(0, TransportKey, 0, 1, 2)
		require.ErrorIs(t, err, ErrReadBlock)
		assert.Nil(t, data)

		status, ok := StatusCode(err)
		require.True(t, ok)
		assert.Equal(t, StatusReadBlockFailure, status)

		assert.Equal(t, []byte{0, 1}, blockReads(reader), "block 2 must not be read")
		assert.Equal(t, StateIdle, session.State())
	})

	t.Run("Authentication_Failure", func(t *testing.T) {
		t.Parallel()
		session, reader := newSimSession(t, testutil.NewVirtualMIFARE1K(nil))
		_, err := session.Select()
		require.NoError(t, err)

		_, err = session.ReadSector(1, NDEFKey)
		require.ErrorIs(t, err, ErrAuthentication)
		assert.Empty(t, blockReads(reader))
	})

	t.Run("Invalid_Block_Sends_Nothing", func(t *testing.T) {
		t.Parallel()
		session, reader := newSimSession(t, testutil.NewVirtualMIFARE1K(nil))
		_, err := session.Select()
		require.NoError(t, err)
		before := len(reader.Requests())

		_, err = session.ReadSector(1, TransportKey, 0, 7)
		require.ErrorIs(t, err, ErrInvalidParameter)
		assert.Len(t, reader.Requests(), before)
	})
}

func TestMIFARESession_WriteBlock(t *testing.T) {
	t.Parallel()

	t.Run("Writes_And_Reads_Back", func(t *testing.T) {
		t.Parallel()
		card := testutil.NewVirtualMIFARE1K(nil)
		session, _ := newSimSession(t, card)
		_, err := session.Select()
		require.NoError(t, err)

		data := []byte("0123456789ABCDEF")
		require.NoError(t, session.WriteBlock(2, TransportKey, 1, data))
		assert.Equal(t, data, card.Memory[9])

		got, err := session.ReadBlock(2, 1)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("Data_Must_Be_16_Bytes", func(t *testing.T) {
		t.Parallel()
		session, reader := newSimSession(t, testutil.NewVirtualMIFARE1K(nil))
		_, err := session.Select()
		require.NoError(t, err)
		before := len(reader.Requests())

		err = session.WriteBlock(2, TransportKey, 1, []byte{0x01, 0x02})
		require.ErrorIs(t, err, ErrInvalidParameter)
		assert.Len(t, reader.Requests(), before)
	})

	t.Run("Device_Failure", func(t *testing.T) {
		t.Parallel()
		session, reader := newSimSession(t, testutil.NewVirtualMIFARE1K(nil))
		reader.Hook = func(req testutil.Request) ([]byte, bool) {
			if req.Command == testutil.CmdMifareWriteBlock {
				return encodeResponse(req.Command, 24), true
			}
			return nil, false
		}
		_, err := session.Select()
		require.NoError(t, err)

		err = session.WriteBlock(2, TransportKey, 1, make([]byte, BlockSize))
		require.ErrorIs(t, err, ErrWriteBlock)
		status, _ := StatusCode(err)
		assert.Equal(t, StatusWriteBlockFailure, status)
		assert.Equal(t, StateIdle, session.State())
	})
}

func TestMIFARESession_WriteBlockVerified(t *testing.T) {
	t.Parallel()

	t.Run("Match", func(t *testing.T) {
		t.Parallel()
		session, _ := newSimSession(t, testutil.NewVirtualMIFARE1K(nil))
		_, err := session.Select()
		require.NoError(t, err)

		require.NoError(t, session.WriteBlockVerified(1, TransportKey, 0, bytes.Repeat([]byte{0x5A}, BlockSize)))
	})

	t.Run("Mismatch", func(t *testing.T) {
		t.Parallel()
		session, reader := newSimSession(t, testutil.NewVirtualMIFARE1K(nil))
		reader.Hook = func(req testutil.Request) ([]byte, bool) {
			if req.Command == testutil.CmdMifareReadBlock {
				return encodeResponse(req.Command, 0, make([]byte, BlockSize)...), true
			}
			return nil, false
		}
		_, err := session.Select()
		require.NoError(t, err)

		err = session.WriteBlockVerified(1, TransportKey, 0, bytes.Repeat([]byte{0x5A}, BlockSize))
		require.ErrorIs(t, err, ErrVerification)
	})

	t.Run("Trailer_Rejected", func(t *testing.T) {
		t.Parallel()
		session, _ := newSimSession(t, testutil.NewVirtualMIFARE1K(nil))
		err := session.WriteBlockVerified(1, TransportKey, 3, make([]byte, BlockSize))
		require.ErrorIs(t, err, ErrInvalidParameter)
	})
}

func TestMIFARESession_Balance(t *testing.T) {
	t.Parallel()

	card := testutil.NewVirtualMIFARE1K(nil)
	session, reader := newSimSession(t, card)
	_, err := session.Select()
	require.NoError(t, err)

	data, err := session.InitBalance(1, TransportKey, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, []byte{100, 0, 0, 0}, data)

	_, err = session.IncreaseBalance(1, TransportKey, 1, 0x0102)
	require.NoError(t, err)
	_, err = session.DecreaseBalance(1, TransportKey, 1, 2)
	require.NoError(t, err)

	data, err = session.ReadBalance(1, TransportKey, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x64, 0x01, 0, 0}, data)

	value, err := card.Value(5)
	require.NoError(t, err)
	assert.Equal(t, int32(100+0x0102-2), value)

	for _, req := range reader.Requests() {
		if req.Command == testutil.CmdMifareIncrement {
			assert.Equal(t, []byte{5, 0x02, 0x01}, req.Payload, "amount is little-endian")
		}
		if req.Command == testutil.CmdMifareReadBalance {
			assert.Equal(t, []byte{5}, req.Payload)
		}
	}
}

func TestMIFARESession_BalanceErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		op      func(*MIFARESession) error
		wantErr error
		name    string
		cmd     uint16
	}{
		{
			name:    "Init",
			cmd:     testutil.CmdMifareInitValue,
			wantErr: ErrInitBalance,
			op: func(s *MIFARESession) error {
				_, err := s.InitBalance(1, TransportKey, 0, 1)
				return err
			},
		},
		{
			name:    "Read",
			cmd:     testutil.CmdMifareReadBalance,
			wantErr: ErrReadBalance,
			op: func(s *MIFARESession) error {
				_, err := s.ReadBalance(1, TransportKey, 0)
				return err
			},
		},
		{
			name:    "Increase",
			cmd:     testutil.CmdMifareIncrement,
			wantErr: ErrIncreaseBalance,
			op: func(s *MIFARESession) error {
				_, err := s.IncreaseBalance(1, TransportKey, 0, 1)
				return err
			},
		},
		{
			name:    "Decrease",
			cmd:     testutil.CmdMifareDecrement,
			wantErr: ErrDecreaseBalance,
			op: func(s *MIFARESession) error {
				_, err := s.DecreaseBalance(1, TransportKey, 0, 1)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			session, reader := newSimSession(t, testutil.NewVirtualMIFARE1K(nil))
			reader.Hook = func(req testutil.Request) ([]byte, bool) {
				if req.Command == tt.cmd {
					return encodeResponse(req.Command, 25), true
				}
				return nil, false
			}
			_, err := session.Select()
			require.NoError(t, err)

			err = tt.op(session)
			require.ErrorIs(t, err, tt.wantErr)
			status, ok := StatusCode(err)
			require.True(t, ok)
			assert.Equal(t, StatusReadAddressFailure, status)
			assert.Equal(t, StateIdle, session.State())
		})
	}
}

func TestParseKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    Key
		wantErr bool
	}{
		{input: "FFFFFFFFFFFF", want: TransportKey},
		{input: "d3:f7:d3:f7:d3:f7", want: NDEFKey},
		{input: "A0 A1 A2 A3 A4 A5", want: Key{0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5}},
		{input: "a0-a1-a2-a3-a4-a5", want: Key{0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5}},
		{input: "FFFF", wantErr: true},
		{input: "GGGGGGGGGGGG", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseKey(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}

func TestCardType_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Mifare Classic 1K", CardTypeClassic1K.String())
	assert.Equal(t, "Mifare Ultralight", CardTypeUltralight.String())
	assert.Equal(t, "unknown card type 0x1234", CardType(0x1234).String())
	assert.Equal(t, "A", MIFAREKeyA.String())
	assert.Equal(t, "B", MIFAREKeyB.String())
	assert.Equal(t, "authenticated", StateAuthenticated.String())
}

func TestDefaultKeys(t *testing.T) {
	t.Parallel()

	keys := DefaultKeys()
	require.Len(t, keys, 8)
	assert.Equal(t, Key{}, keys[0])
	assert.Equal(t, TransportKey, keys[1])
	assert.Equal(t, NDEFKey, keys[6])

	keys[0][0] = 0x99
	assert.Equal(t, Key{}, DefaultKeys()[0], "DefaultKeys returns a fresh slice")
}
