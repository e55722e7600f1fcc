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

/*
Package yhy523u drives the Ehuoyan YHY523U, a USB-serial 13.56 MHz reader for
Mifare cards.

The reader speaks a framed binary protocol. Every request gets exactly one
response echoing the request's command code, and the first payload byte of
most responses is a status code where zero means success.

Features:
  - Frame codec with 0xAA byte stuffing and XOR checksum
  - Reader commands: firmware version, node number, beep, LEDs, baud rate, antenna
  - Mifare Classic and Ultralight select, authenticate, read, write
  - Value block (balance) operations
  - Best-effort sector dumps and key probing
  - NDEF reading from Mifare Classic cards

Subpackages:
  - transport/uart: serial port transport
  - detection: serial port discovery by USB VID:PID
  - polling: card arrival and removal monitoring

Basic Usage:

	import (
	    "github.com/mdeverdelhan/yhy523u"
	    "github.com/mdeverdelhan/yhy523u/transport/uart"
	)

	transport, err := uart.New("/dev/ttyUSB0")
	if err != nil {
	    log.Fatal(err)
	}

	device, err := yhy523u.New(transport, yhy523u.WithTimeout(time.Second))
	if err != nil {
	    log.Fatal(err)
	}
	defer device.Close()

	session := yhy523u.NewMIFARESession(device)
	card, err := session.Select()
	if errors.Is(err, yhy523u.ErrNoCard) {
	    fmt.Println("no card")
	    return
	}
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Printf("%s %s\n", card.Type, card.UID())

	data, err := session.ReadSector(1, yhy523u.TransportKey)

Blocking:

Reads block until the reader answers unless a timeout is configured with
WithTimeout or a deadline is carried by the context passed to the ...Context
methods.

Thread Safety:

Device and MIFARESession are not safe for concurrent use. The transport is
owned by one device and requests are strictly sequential.
*/
package yhy523u
