// Command dioctl is an interactive console for manual bring-up and
// testing of boards through the api façade, replacing boardtest's
// hardware power-rail sequencing with a host-side line console driving
// a real network board server.
//
// Grounded on the teacher's cmd/boardtest/main.go shape: a small
// standalone main wiring a thin helper type around the core package,
// printing progress with plain fmt calls, one command loop instead of
// boardtest's power-sequence loop.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"dio64board/api"
	"dio64board/registry"
	"dio64board/samplefile"
)

type console struct {
	facade *api.Facade
	handle api.Handle
	ctx    context.Context
}

func main() {
	c := &console{
		facade: api.New(),
		ctx:    context.Background(),
	}

	sc := bufio.NewScanner(os.Stdin)
	fmt.Println("dioctl - board console. Type 'help' for commands.")
	for {
		fmt.Print("dioctl> ")
		if !sc.Scan() {
			break
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		args, err := shlex.Split(line)
		if err != nil {
			fmt.Println("parse error:", err)
			continue
		}
		if err := c.dispatch(args); err != nil {
			fmt.Println("error:", err)
		}
	}
	_ = c.facade.ExitAll()
}

func (c *console) dispatch(args []string) error {
	if len(args) == 0 {
		return nil
	}
	switch args[0] {
	case "help":
		c.help()
	case "open":
		return c.cmdOpen(args[1:])
	case "close":
		return c.cmdClose(args[1:])
	case "config":
		return c.cmdConfig(args[1:])
	case "write":
		return c.cmdWrite(args[1:])
	case "start":
		return c.facade.OutStart(c.handle)
	case "stop":
		return c.facade.OutStop(c.handle)
	case "status":
		return c.cmdStatus()
	case "exit", "quit":
		_ = c.facade.ExitAll()
		os.Exit(0)
	default:
		fmt.Println("unknown command:", args[0])
	}
	return nil
}

func (c *console) help() {
	fmt.Println(`commands:
  open <host:port> [baseio]   open a board (or linked group if baseio>=2)
  close [deferMillis]         close the open handle
  config <scanHz> <reps>      Out_Config with trivial trigger/mask defaults
  write <samplefile>          Out_Write from an ASCII sample file
  start                       Out_Start
  stop                        Out_Stop
  status                      Out_Status
  exit                        tear down and quit`)
}

func (c *console) cmdOpen(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: open <host:port> [baseio]")
	}
	baseio := api.BaseioSingle
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("bad baseio: %w", err)
		}
		baseio = n
	}
	h, err := c.facade.OpenResource(c.ctx, args[0], registry.UserID(1), baseio)
	if err != nil {
		return err
	}
	c.handle = h
	fmt.Println("opened handle", h)
	return nil
}

func (c *console) cmdClose(args []string) error {
	deferFor := time.Duration(0)
	if len(args) > 0 {
		ms, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("bad defer milliseconds: %w", err)
		}
		deferFor = time.Duration(ms) * time.Millisecond
	}
	return c.facade.Close(c.handle, deferFor)
}

func (c *console) cmdConfig(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: config <scanHz> <reps>")
	}
	scanHz, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("bad scanHz: %w", err)
	}
	reps, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("bad reps: %w", err)
	}
	return c.facade.OutConfig(c.handle, api.ConfigArgs{
		ScanHz: uint32(scanHz),
		Reps:   uint32(reps),
	})
}

func (c *console) cmdWrite(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: write <samplefile>")
	}
	words, err := samplefile.Load(args[0], 2)
	if err != nil {
		return err
	}
	return c.facade.OutWrite(c.handle, samplefile.WordsToBytes(words), 8)
}

func (c *console) cmdStatus() error {
	st, code, err := c.facade.OutStatus(c.handle)
	if err != nil {
		return err
	}
	fmt.Printf("status bits=0x%08x boardTime=%d code=%s\n", st.StatusBits, st.BoardTime, code)
	return nil
}
