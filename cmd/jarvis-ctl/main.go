package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	cli "github.com/spf13/pflag"

	"jarvis/internal/config"
	"jarvis/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", "", "Daemon control socket")
	cli.Parse()

	if *socket == "" {
		if cfg, err := config.Load(""); err == nil {
			*socket = cfg.IPC.Socket
		}
	}

	msg := ipc.ControlMessage{Cmd: ipc.CmdTrigger}
	if args := cli.Args(); len(args) > 0 {
		msg.Cmd = args[0]
		msg.Text = strings.Join(args[1:], " ")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	reply, err := ipc.Send(ctx, *socket, msg)
	if err != nil {
		fmt.Println("jarvis-daemon not running:", err)
		os.Exit(1)
	}
	if !reply.OK {
		fmt.Println("error:", reply.Error)
		os.Exit(1)
	}
	if reply.Text != "" {
		fmt.Println(reply.Text)
	}
}
