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

package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mdeverdelhan/yhy523u"
	"github.com/mdeverdelhan/yhy523u/polling"
)

// app carries what a command needs to run
type app struct {
	ctx     context.Context
	device  *yhy523u.Device
	session *yhy523u.MIFARESession
	out     io.Writer
	key     yhy523u.Key
}

func newApp(ctx context.Context, device *yhy523u.Device, key yhy523u.Key, out io.Writer) *app {
	return &app{
		ctx:     ctx,
		device:  device,
		session: yhy523u.NewMIFARESession(device),
		out:     out,
		key:     key,
	}
}

func (a *app) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.out, format, args...)
}

// action runs a command against a connected reader
type action func(a *app) error

// command parses its arguments before the reader is opened, so usage
// errors never touch the serial port.
type command struct {
	parse func(args []string) (action, error)
	usage string
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"info":    {parse: parseInfo, usage: "show firmware version and node number"},
		"select":  {parse: parseSelect, usage: "select the card in the field and show its serial"},
		"halt":    {parse: parseHalt, usage: "select then halt the card"},
		"read":    {parse: parseRead, usage: "read <sector> [block...]: read blocks with key A"},
		"write":   {parse: parseWrite, usage: "write [-verify] <sector> <block> <32 hex digits>"},
		"dump":    {parse: parseDump, usage: "read blocks 0-2 of every sector"},
		"acl":     {parse: parseACL, usage: "show the access conditions of every sector"},
		"keys":    {parse: parseKeys, usage: "keys <sector> [key...]: find key A and key B"},
		"balance": {parse: parseBalance, usage: "balance <init|read|inc|dec> <sector> <block> [amount]"},
		"ndef":    {parse: parseNDEF, usage: "read the NDEF message"},
		"beep":    {parse: parseBeep, usage: "beep [ms]: sound the buzzer"},
		"led":     {parse: parseLED, usage: "led <off|red|blue|both>"},
		"watch":   {parse: parseWatch, usage: "watch [-interval d] [-beep]: report cards until interrupted"},
	}
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var errUsage = errors.New("invalid arguments")

func parseUint8(s, what string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", errUsage, what, s)
	}
	return uint8(v), nil
}

func formatHex(data []byte) string {
	return strings.ToUpper(hex.EncodeToString(data))
}

func noArgs(name string, run action) func(args []string) (action, error) {
	return func(args []string) (action, error) {
		if len(args) != 0 {
			return nil, fmt.Errorf("%w: %s takes no arguments", errUsage, name)
		}
		return run, nil
	}
}

var (
	parseInfo   = noArgs("info", runInfo)
	parseSelect = noArgs("select", runSelect)
	parseHalt   = noArgs("halt", runHalt)
	parseDump   = noArgs("dump", runDump)
	parseACL    = noArgs("acl", runACL)
	parseNDEF   = noArgs("ndef", runNDEF)
)

func runInfo(a *app) error {
	version, err := a.device.FirmwareVersionContext(a.ctx)
	if err != nil {
		return err
	}
	node, err := a.device.NodeNumberContext(a.ctx)
	if err != nil {
		return err
	}
	a.printf("firmware: %s\nnode:     %d\n", version, node)
	return nil
}

func runSelect(a *app) error {
	card, err := a.session.SelectContext(a.ctx)
	if err != nil {
		return err
	}
	a.printf("%s %s\n", card.UID(), card.Type)
	return nil
}

func runHalt(a *app) error {
	if _, err := a.session.SelectContext(a.ctx); err != nil {
		return err
	}
	status, _, err := a.session.HaltContext(a.ctx)
	if err != nil {
		return err
	}
	a.printf("halted (status %d)\n", status)
	return nil
}

func parseRead(args []string) (action, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: read <sector> [block...]", errUsage)
	}
	sector, err := parseUint8(args[0], "sector")
	if err != nil {
		return nil, err
	}
	blocks := make([]uint8, 0, len(args)-1)
	for _, arg := range args[1:] {
		block, err := parseUint8(arg, "block")
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	if len(blocks) == 0 {
		blocks = []uint8{0, 1, 2}
	}

	return func(a *app) error {
		if _, err := a.session.SelectContext(a.ctx); err != nil {
			return err
		}
		data, err := a.session.ReadSectorContext(a.ctx, sector, a.key, blocks...)
		if err != nil {
			return err
		}
		for i, block := range blocks {
			a.printf("%02d/%d %s\n", sector, block, formatHex(data[i*yhy523u.BlockSize:(i+1)*yhy523u.BlockSize]))
		}
		return nil
	}, nil
}

func parseWrite(args []string) (action, error) {
	fs := flag.NewFlagSet("write", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	verify := fs.Bool("verify", false, "read the block back after writing")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() != 3 {
		return nil, fmt.Errorf("%w: write [-verify] <sector> <block> <32 hex digits>", errUsage)
	}

	sector, err := parseUint8(fs.Arg(0), "sector")
	if err != nil {
		return nil, err
	}
	block, err := parseUint8(fs.Arg(1), "block")
	if err != nil {
		return nil, err
	}
	data, err := hex.DecodeString(fs.Arg(2))
	if err != nil {
		return nil, fmt.Errorf("%w: data: %w", errUsage, err)
	}

	return func(a *app) error {
		if _, err := a.session.SelectContext(a.ctx); err != nil {
			return err
		}
		var err error
		if *verify {
			err = a.session.WriteBlockVerifiedContext(a.ctx, sector, a.key, block, data)
		} else {
			err = a.session.WriteBlockContext(a.ctx, sector, a.key, block, data)
		}
		if err != nil {
			return err
		}
		a.printf("wrote %02d/%d\n", sector, block)
		return nil
	}, nil
}

func runDump(a *app) error {
	dumps, err := a.session.DumpContext(a.ctx, a.key)
	for _, d := range dumps {
		if !d.OK() {
			a.printf("%02d error: %v\n", d.Sector, d.Err)
			continue
		}
		for block := 0; block*yhy523u.BlockSize < len(d.Data); block++ {
			a.printf("%02d/%d %s\n", d.Sector, block, formatHex(d.Data[block*yhy523u.BlockSize:(block+1)*yhy523u.BlockSize]))
		}
	}
	return err
}

func runACL(a *app) error {
	dumps, err := a.session.DumpAccessConditionsContext(a.ctx, a.key)
	for _, d := range dumps {
		if !d.OK() {
			a.printf("%02d error: %v\n", d.Sector, d.Err)
			continue
		}
		conditions, decodeErr := yhy523u.DecodeAccessConditions(d.Data)
		if decodeErr != nil {
			a.printf("%02d %s invalid: %v\n", d.Sector, formatHex(d.Data), decodeErr)
			continue
		}
		a.printf("%02d %s %03b %03b %03b %03b\n", d.Sector, formatHex(d.Data),
			conditions[0], conditions[1], conditions[2], conditions[3])
	}
	return err
}

func parseKeys(args []string) (action, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: keys <sector> [key...]", errUsage)
	}
	sector, err := parseUint8(args[0], "sector")
	if err != nil {
		return nil, err
	}
	candidates := make([]yhy523u.Key, 0, len(args)-1)
	for _, arg := range args[1:] {
		key, err := yhy523u.ParseKey(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errUsage, err)
		}
		candidates = append(candidates, key)
	}

	return func(a *app) error {
		result, err := a.session.FindKeysContext(a.ctx, sector, candidates)
		if err != nil {
			return err
		}
		a.printf("key A: %s\nkey B: %s\n(%d attempts)\n",
			keyOrNone(result.KeyA), keyOrNone(result.KeyB), len(result.Attempts))
		return nil
	}, nil
}

func keyOrNone(key *yhy523u.Key) string {
	if key == nil {
		return "not found"
	}
	return key.String()
}

func parseBalance(args []string) (action, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("%w: balance <init|read|inc|dec> <sector> <block> [amount]", errUsage)
	}
	op := args[0]
	switch op {
	case "init", "read", "inc", "dec":
	default:
		return nil, fmt.Errorf("%w: unknown balance operation %q", errUsage, op)
	}
	sector, err := parseUint8(args[1], "sector")
	if err != nil {
		return nil, err
	}
	block, err := parseUint8(args[2], "block")
	if err != nil {
		return nil, err
	}
	var amount uint16
	if op != "read" {
		if len(args) != 4 {
			return nil, fmt.Errorf("%w: %s needs an amount", errUsage, op)
		}
		v, err := strconv.ParseUint(args[3], 0, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: amount %q", errUsage, args[3])
		}
		amount = uint16(v)
	}

	return func(a *app) error {
		if _, err := a.session.SelectContext(a.ctx); err != nil {
			return err
		}

		var data []byte
		var err error
		switch op {
		case "init":
			data, err = a.session.InitBalanceContext(a.ctx, sector, a.key, block, amount)
		case "read":
			data, err = a.session.ReadBalanceContext(a.ctx, sector, a.key, block)
		case "inc":
			data, err = a.session.IncreaseBalanceContext(a.ctx, sector, a.key, block, amount)
		case "dec":
			data, err = a.session.DecreaseBalanceContext(a.ctx, sector, a.key, block, amount)
		}
		if err != nil {
			return err
		}
		a.printf("%s\n", formatHex(data))
		return nil
	}, nil
}

func runNDEF(a *app) error {
	msg, err := a.session.ReadNDEF(a.ctx)
	if err != nil {
		return err
	}
	a.printf("%s\n", msg.String())
	return nil
}

func parseBeep(args []string) (action, error) {
	if len(args) > 1 {
		return nil, fmt.Errorf("%w: beep [ms]", errUsage)
	}
	duration := uint8(50)
	if len(args) > 0 {
		v, err := parseUint8(args[0], "duration")
		if err != nil {
			return nil, err
		}
		duration = v
	}
	return func(a *app) error {
		return a.device.BeepContext(a.ctx, duration)
	}, nil
}

func parseLED(args []string) (action, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%w: led <off|red|blue|both>", errUsage)
	}
	led, err := yhy523u.ParseLED(args[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	return func(a *app) error {
		return a.device.SetLEDContext(a.ctx, led)
	}, nil
}

func parseWatch(args []string) (action, error) {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	interval := fs.Duration("interval", 100*time.Millisecond, "pause between polls")
	beep := fs.Bool("beep", false, "beep when a card arrives")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() != 0 {
		return nil, fmt.Errorf("%w: watch [-interval d] [-beep]", errUsage)
	}
	config := polling.DefaultConfig()
	config.PollInterval = *interval
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}

	return func(a *app) error {
		return watch(a, config, *beep)
	}, nil
}

func watch(a *app, config *polling.Config, beep bool) error {
	monitor, err := polling.NewMonitor(a.device, config)
	if err != nil {
		return err
	}

	onCard := func(label string) func(card *yhy523u.Card) error {
		return func(card *yhy523u.Card) error {
			a.printf("%s %s %s\n", label, card.UID(), card.Type)
			if beep {
				return a.device.BeepContext(a.ctx, 30)
			}
			return nil
		}
	}
	monitor.OnCardDetected = onCard("detected")
	monitor.OnCardChanged = onCard("changed")
	monitor.OnCardRemoved = func() { a.printf("removed\n") }

	err = monitor.Start(a.ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
