package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/Roygautam8852/SyncSpace/auth"
	"github.com/Roygautam8852/SyncSpace/board"
	"github.com/Roygautam8852/SyncSpace/config"
	"github.com/Roygautam8852/SyncSpace/rtc"
)

type counters struct {
	sent, received atomic.Int64
}

type bomber struct {
	id     int
	url    string
	room   string
	secret string
	rate   int
	points int
	call   bool
}

func (b bomber) run(ctx context.Context, c *counters) error {
	userID := fmt.Sprintf("bomber-%d", b.id)

	header := http.Header{}
	if b.secret != "" {
		tok, err := auth.CreateJWT([]byte(b.secret), userID, userID, time.Hour)
		if err != nil {
			return err
		}
		header.Set("Authorization", "Bearer "+tok)
	}

	sig, err := rtc.DialSignaler(ctx, b.url, header)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer sig.Close()

	var mesh *rtc.Mesh
	if b.call {
		mesh = rtc.NewMesh(rtc.Options{
			RoomID:    b.room,
			Username:  userID,
			Signaler:  sig,
			Transport: rtc.PionFactory(nil, webrtc.Configuration{}),
			OpenMedia: rtc.StaticOpener(userID),
		})
	}

	// the mesh needs our socket id before it can join
	connected := make(chan struct{})
	var once sync.Once

	// count everything fanned out to us
	go func() {
		_ = sig.Listen(func(event string, data json.RawMessage) {
			c.received.Add(1)
			if mesh != nil {
				if err := mesh.Handle(event, data); err != nil {
					log.Printf("%s: %s: %v", userID, event, err)
				}
			}
			if event == config.EvConnected {
				once.Do(func() { close(connected) })
			}
		})
	}()

	join := config.RoomMsg{RoomID: b.room, UserID: userID, UserName: userID}
	if err := sig.Emit(config.EvJoinRoom, join); err != nil {
		return err
	}

	if mesh != nil {
		select {
		case <-connected:
		case <-ctx.Done():
			return nil
		}
		if err := mesh.Join(ctx); err != nil {
			return err
		}
		defer mesh.Leave()
	}

	ticker := time.NewTicker(time.Second / time.Duration(b.rate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if mesh != nil {
				log.Printf("%s: %d peers", userID, len(mesh.Peers()))
			}
			return nil
		case <-ticker.C:
		}

		var err error
		switch rand.IntN(4) {
		case 0:
			s := board.RandomStroke(b.points)
			err = sig.Emit(config.EvNewStroke, config.StrokeIn{RoomID: b.room, Stroke: &s})
		default:
			err = sig.Emit(config.EvCursorMove, map[string]any{
				"roomId": b.room,
				"cursorData": map[string]any{
					"x":        rand.Float64() * 1920,
					"y":        rand.Float64() * 1080,
					"userName": userID,
				},
			})
		}
		if err != nil {
			return fmt.Errorf("write: %w", err)
		}
		c.sent.Add(1)
	}
}

func main() {
	var (
		wsURL    = flag.String("url", "ws://localhost:8080/ws", "ws url")
		room     = flag.String("room", "load-test", "room id")
		clients  = flag.Int("clients", 10, "concurrent connections")
		rate     = flag.Int("rate", 50, "frames per second per connection")
		points   = flag.Int("points", 16, "points per stroke")
		duration = flag.Int("duration", 10, "seconds")
		secret   = flag.String("secret", "", "JWT secret, mints a token per connection when set")
		call     = flag.Bool("call", false, "also join the mesh call with pion peer connections")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*duration)*time.Second)
	defer cancel()

	var c counters
	var wg sync.WaitGroup

	for i := range *clients {
		b := bomber{
			id:     i,
			url:    *wsURL,
			room:   *room,
			secret: *secret,
			rate:   *rate,
			points: *points,
			call:   *call,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.run(ctx, &c); err != nil {
				log.Printf("client %d: %v", i, err)
			}
		}()
	}

	log.Printf("🔥 %d clients on %s room %s", *clients, *wsURL, *room)
	wg.Wait()
	log.Printf("💥 done: sent %d, received %d", c.sent.Load(), c.received.Load())
}
