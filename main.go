package main

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/joho/godotenv"

	"avplayer/pkg/player"
	"avplayer/pkg/settings"
)

func main() {
	// CRITICAL: lock the OS thread immediately, before SDL2 touches
	// anything — every SDL2 call for the life of this process must come
	// from this same thread.
	runtime.LockOSThread()

	setupMemoryManagement()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := godotenv.Load(); err != nil {
		log.Printf("main: no .env file found: %v", err)
	}

	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <source>", os.Args[0])
	}
	source := os.Args[1]

	s := settings.Load()
	log.Printf("main: starting with sync=%s source=%s", s.SyncType, source)

	p, err := player.New(source, s)
	if err != nil {
		log.Fatalf("main: failed to open %q: %v", source, err)
	}
	defer p.Close()

	if err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "playback error: %v\n", err)
		os.Exit(1)
	}

	log.Println("main: playback finished")
}

// setupMemoryManagement mirrors the teacher's ARM64/embedded-target GC
// tuning: a single-core, low-footprint process is friendlier to
// Raspberry-Pi-class hardware than Go's defaults.
func setupMemoryManagement() {
	os.Setenv("GODEBUG", "madvdontneed=1")
	debug.SetGCPercent(25)
	debug.SetMemoryLimit(256 << 20)

	for i := 0; i < 3; i++ {
		runtime.GC()
		time.Sleep(50 * time.Millisecond)
	}
}
