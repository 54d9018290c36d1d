package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"gossipchain/core"
)

// maxConsoleLine bounds one command line, payload included.
const maxConsoleLine = 1 << 20

// Controller is the part of *node.Node the console drives.
type Controller interface {
	ListPeers(ctx context.Context) ([]string, error)
	ListChain(ctx context.Context) ([]*core.Block, error)
	CreateBlock(ctx context.Context, payload string) (int, error)
}

// Console reads operator commands line by line and prints their results.
type Console struct {
	ctrl Controller
	in   io.Reader
	out  io.Writer
}

func NewConsole(ctrl Controller, in io.Reader, out io.Writer) *Console {
	return &Console{ctrl: ctrl, in: in, out: out}
}

// Run reads commands until in is exhausted, a read fails or ctx is done.
func (c *Console) Run(ctx context.Context) {
	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxConsoleLine)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if err := c.Exec(ctx, scanner.Text()); err != nil {
			fmt.Fprintln(c.out, pterm.Error.Sprint(err.Error()))
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintln(c.out, pterm.Error.Sprintf("Console input stopped: %v", err))
	}
}

// Exec runs one command line.
func (c *Console) Exec(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return nil
	case line == "ls p":
		peers, err := c.ctrl.ListPeers(ctx)
		if err != nil {
			return err
		}
		c.printPeers(peers)
	case line == "ls c":
		blocks, err := c.ctrl.ListChain(ctx)
		if err != nil {
			return err
		}
		return c.printChain(blocks)
	case strings.HasPrefix(line, "create b"):
		payload := strings.TrimSpace(strings.TrimPrefix(line, "create b"))
		queued, err := c.ctrl.CreateBlock(ctx, payload)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, pterm.Success.Sprintf("Block queued for mining (%d in queue)", queued))
	case line == "help":
		c.printHelp()
	default:
		return fmt.Errorf("unknown command %q, try help", line)
	}
	return nil
}

func (c *Console) printPeers(peers []string) {
	if len(peers) == 0 {
		fmt.Fprintln(c.out, pterm.Info.Sprint("No peers discovered"))
		return
	}
	items := make([]pterm.BulletListItem, 0, len(peers))
	for _, p := range peers {
		items = append(items, pterm.BulletListItem{Level: 0, Text: p})
	}
	s, err := pterm.DefaultBulletList.WithItems(items).Srender()
	if err != nil {
		fmt.Fprintln(c.out, strings.Join(peers, "\n"))
		return
	}
	fmt.Fprint(c.out, s)
}

func (c *Console) printChain(blocks []*core.Block) error {
	data := pterm.TableData{{"ID", "Hash", "Previous", "Time", "Nonce", "Data"}}
	for _, b := range blocks {
		data = append(data, []string{
			strconv.FormatUint(b.ID, 10),
			b.Hash,
			b.PreviousHash,
			time.Unix(b.Timestamp, 0).UTC().Format(time.RFC3339),
			strconv.FormatUint(b.Nonce, 10),
			b.Data,
		})
	}
	s, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, s)
	return nil
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, "Commands:")
	fmt.Fprintln(c.out, "  ls p              - list discovered peers")
	fmt.Fprintln(c.out, "  ls c              - print the local chain")
	fmt.Fprintln(c.out, "  create b <data>   - mine a new block carrying data")
	fmt.Fprintln(c.out, "  help              - show this help")
}
