package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const usage = `commands:
  add <name>                 add a token
  move <tokenId> <x> <y>     move a token
  remove <tokenId>           remove a token
  reveal <cell>...           reveal fog cells (GM)
  resetfog                   reset fog (GM)
  map <key>=<value>...       update map config (GM), e.g. map gridSize=60 snapToGrid=true
  quit`

var errUsage = errors.New("bad command")

// parseCommand turns one input line into a protocol frame.
func parseCommand(line string) ([]byte, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errUsage
	}

	var msg map[string]any
	switch fields[0] {
	case "add":
		if len(fields) < 2 {
			return nil, errUsage
		}
		msg = map[string]any{"type": "ADD_TOKEN", "token": map[string]any{"name": strings.Join(fields[1:], " ")}}
	case "move":
		if len(fields) != 4 {
			return nil, errUsage
		}
		x, errX := strconv.ParseFloat(fields[2], 64)
		y, errY := strconv.ParseFloat(fields[3], 64)
		if errX != nil || errY != nil {
			return nil, errUsage
		}
		msg = map[string]any{"type": "MOVE_TOKEN_REQUEST", "tokenId": fields[1], "position": map[string]float64{"x": x, "y": y}}
	case "remove":
		if len(fields) != 2 {
			return nil, errUsage
		}
		msg = map[string]any{"type": "REMOVE_TOKEN", "tokenId": fields[1]}
	case "reveal":
		if len(fields) < 2 {
			return nil, errUsage
		}
		msg = map[string]any{"type": "REVEAL_FOG", "cells": fields[1:]}
	case "resetfog":
		msg = map[string]any{"type": "RESET_FOG"}
	case "map":
		if len(fields) < 2 {
			return nil, errUsage
		}
		cfg := make(map[string]any, len(fields)-1)
		for _, kv := range fields[1:] {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return nil, errUsage
			}
			cfg[k] = parseValue(v)
		}
		msg = map[string]any{"type": "UPDATE_MAP", "config": cfg}
	default:
		return nil, errUsage
	}
	return json.Marshal(msg)
}

func parseValue(v string) any {
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}

func main() {
	addr := flag.String("url", "ws://localhost:8080/vtt", "room server websocket url")
	roomID := flag.String("room", "", "room code")
	userID := flag.String("user", "", "user id")
	flag.Parse()

	if *roomID == "" || *userID == "" {
		log.Fatal("-room and -user are required")
	}

	u, err := url.Parse(*addr)
	if err != nil {
		log.Fatalf("Bad url: %v", err)
	}
	q := u.Query()
	q.Set("roomId", *roomID)
	q.Set("userId", *userID)
	u.RawQuery = q.Encode()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	log.Printf("Connecting to %s", u.String())
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			log.Printf("<- %s", message)
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	fmt.Println(usage)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			closeConn(c, done)
			return
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "quit" {
				closeConn(c, done)
				return
			}
			frame, err := parseCommand(line)
			if err != nil {
				fmt.Println(usage)
				continue
			}
			if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> %s", frame)
		}
	}
}

func closeConn(c *websocket.Conn, done <-chan struct{}) {
	log.Println("Closing connection.")
	err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		log.Println("Write close error:", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}
