// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pawtrait/internal/client"
	"pawtrait/internal/wizard"
)

const shellHelp = `commands:
  product <id>     switch to the product's session
  photo <path>     stage a photo
  style <id|name>  choose a style
  submit           generate the image
  ack              dismiss an error
  cart             add the generated image to the cart
  reset            start the current session over
  drop             forget the current session
  status           show the current session
  styles           list styles
  quit`

// sessionIdle is how long an untouched product session is kept.
const sessionIdle = 30 * time.Minute

// shell runs an interactive session per product, one wizard each.
type shell struct {
	api      *client.Client
	sessions *wizard.Store
	product  string
	idle     time.Duration
	out      io.Writer
}

func newShell(api *client.Client, product string, out io.Writer) *shell {
	return &shell{
		api: api,
		sessions: wizard.NewStore(func(productID string) *wizard.Machine {
			return wizard.New(productID, api, api)
		}),
		product: product,
		idle:    sessionIdle,
		out:     out,
	}
}

func (sh *shell) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(sh.out, shellHelp)
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprintf(sh.out, "[%s] > ", sh.product)
		if !sc.Scan() {
			return sc.Err()
		}
		cmd, arg, _ := strings.Cut(strings.TrimSpace(sc.Text()), " ")
		arg = strings.TrimSpace(arg)
		if cmd == "quit" || cmd == "exit" {
			return nil
		}
		if n := sh.sessions.Prune(sh.idle); n > 0 {
			fmt.Fprintf(sh.out, "%d idle session(s) expired\n", n)
		}
		if err := sh.exec(ctx, cmd, arg); err != nil {
			fmt.Fprintln(sh.out, "error:", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (sh *shell) exec(ctx context.Context, cmd, arg string) error {
	if cmd == "" {
		return nil
	}
	if cmd == "product" {
		if arg == "" {
			return fmt.Errorf("usage: product <id>")
		}
		sh.product = arg
		sh.print(sh.sessions.Get(arg).Snapshot())
		return nil
	}
	if cmd == "styles" {
		return printStyles(ctx, sh.api)
	}
	if sh.product == "" {
		return fmt.Errorf("choose a product first")
	}

	m := sh.sessions.Get(sh.product)
	switch cmd {
	case "photo":
		data, err := os.ReadFile(arg)
		if err != nil {
			return err
		}
		if err := m.SelectPhoto(wizard.Photo{Name: filepath.Base(arg), Data: data}); err != nil {
			return err
		}
	case "style":
		if err := m.SelectStyle(arg); err != nil {
			return err
		}
	case "submit":
		fmt.Fprintln(sh.out, "generating...")
		if _, err := m.Submit(ctx); err != nil && m.State() != wizard.Error {
			return err
		}
	case "ack":
		if err := m.Acknowledge(); err != nil {
			return err
		}
	case "cart":
		if _, err := m.AddToCart(ctx); err != nil && m.State() != wizard.CartError {
			return err
		}
	case "reset":
		if err := m.Reset(); err != nil {
			return err
		}
	case "drop":
		sh.sessions.Drop(sh.product)
		fmt.Fprintf(sh.out, "session %s dropped (%d left)\n", sh.product, sh.sessions.Len())
		sh.product = ""
		return nil
	case "status":
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	sh.print(m.Snapshot())
	return nil
}

func (sh *shell) print(s wizard.Snapshot) {
	fmt.Fprintf(sh.out, "state: %s  photos: %d  style: %q\n", s.State, s.StagedPhotos, s.StyleID)
	if s.Notification != nil {
		prefix := "ok"
		if s.Notification.IsError {
			prefix = "!!"
		}
		fmt.Fprintf(sh.out, "%s %s\n", prefix, s.Notification.Message)
	}
	if s.Result != nil && s.State == wizard.Result {
		fmt.Fprintf(sh.out, "image: %s\n", s.Result.GeneratedImageURL)
	}
}
