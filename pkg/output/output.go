// Package output wraps the SDL2 window, renderer, streaming YUV texture
// and audio device the player presents through (spec §6). Grounded on the
// teacher's main.go (SDL2 bring-up, driver fallback list) and
// pkg/mpeg/player.go (texture creation/locking), generalized from a
// single RGBA plane to three-plane I420/YUV420 and from a null audio path
// to a real queue-mode SDL audio device (see OpenAudio).
package output

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/veandco/go-sdl2/sdl"
)

// Output owns every SDL2 resource the player touches.
type Output struct {
	Window   *sdl.Window
	Renderer *sdl.Renderer
	texture  *sdl.Texture
	texW     int32
	texH     int32

	AudioDeviceID sdl.AudioDeviceID
	AudioSpec     sdl.AudioSpec
}

// InitSDL brings SDL2's video and audio subsystems up, trying each
// platform-appropriate driver in turn (spec's "external collaborator"
// boundary for presentation; the fallback list itself is ambient
// robustness the teacher already carries for Pi/headless deployment).
func InitSDL() error {
	runtime.GC()
	time.Sleep(100 * time.Millisecond)

	envDriver := os.Getenv("SDL_VIDEODRIVER")
	var drivers []string
	switch {
	case envDriver != "":
		drivers = []string{envDriver, "x11", "software", "dummy"}
	case runtime.GOOS == "darwin":
		drivers = []string{"cocoa", "software", "dummy"}
	default:
		drivers = []string{"kmsdrm", "drm", "wayland", "x11", "software", "dummy"}
	}

	for _, driver := range drivers {
		log.Printf("output: attempting SDL2 init with %s driver", driver)
		os.Setenv("SDL_VIDEODRIVER", driver)
		sdl.Quit()
		if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_AUDIO); err != nil {
			log.Printf("output: %s driver failed: %v", driver, err)
			continue
		}
		if name, err := sdl.GetCurrentVideoDriver(); err == nil {
			log.Printf("output: SDL2 initialized with %s driver", name)
		}
		return nil
	}
	return fmt.Errorf("output: all SDL2 video drivers failed")
}

// Open creates a window+renderer sized to the video's native resolution
// and the YUV streaming texture decoded frames are uploaded into.
func Open(title string, width, height int) (*Output, error) {
	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(width), int32(height), sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return nil, fmt.Errorf("output: create window: %w", err)
	}

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
	if err != nil {
		renderer, err = sdl.CreateRenderer(window, -1, sdl.RENDERER_SOFTWARE)
		if err != nil {
			window.Destroy()
			return nil, fmt.Errorf("output: create renderer: %w", err)
		}
	}

	texture, err := renderer.CreateTexture(uint32(sdl.PIXELFORMAT_IYUV), sdl.TEXTUREACCESS_STREAMING, int32(width), int32(height))
	if err != nil {
		renderer.Destroy()
		window.Destroy()
		return nil, fmt.Errorf("output: create texture: %w", err)
	}

	return &Output{Window: window, Renderer: renderer, texture: texture, texW: int32(width), texH: int32(height)}, nil
}

// OpenAudio opens an SDL audio device in queue mode: rather than a cgo
// callback, pkg/audioio's producer goroutine pushes resampled PCM with
// sdl.QueueAudio and polls sdl.GetQueuedAudioSize for backpressure. This
// gets spec §4.5's "audio subsystem pulls data on demand" model without a
// cgo-exported callback function, matching how the teacher's pure-Go SDL2
// usage avoids cgo callback registration everywhere else in this repo.
func (o *Output) OpenAudio(sampleRate, channels int) error {
	want := &sdl.AudioSpec{
		Freq:     int32(sampleRate),
		Format:   sdl.AUDIO_S16SYS,
		Channels: uint8(channels),
		Samples:  4096,
	}
	got := &sdl.AudioSpec{}
	id, err := sdl.OpenAudioDevice("", false, want, got, 0)
	if err != nil {
		return fmt.Errorf("output: open audio device: %w", err)
	}
	o.AudioDeviceID = id
	o.AudioSpec = *got
	sdl.PauseAudioDevice(id, false)
	return nil
}

// QueueAudio enqueues resampled PCM for playback.
func (o *Output) QueueAudio(pcm []byte) error {
	return sdl.QueueAudio(o.AudioDeviceID, pcm)
}

// QueuedAudioSize reports how many bytes of previously queued audio have
// not yet been played, used by pkg/clock's get_audio_clock to subtract
// the not-yet-played duration (spec §4.3).
func (o *Output) QueuedAudioSize() uint32 {
	return sdl.GetQueuedAudioSize(o.AudioDeviceID)
}

// PollEvents drains the SDL event queue, reporting quit requests and key
// presses for pkg/control to translate (spec §4.6).
func (o *Output) PollEvents() []sdl.Event {
	var events []sdl.Event
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		events = append(events, event)
	}
	return events
}

// UpdateFrame uploads a decoded I420 picture's three planes into the
// streaming texture (spec §6's pixel-upload step). Re-creates the texture
// if the frame's dimensions changed (e.g. after a seek into a differently
// sized stream — not expected for this player's single fixed-resolution
// stream, but kept defensive the way the teacher's updateTexture is).
func (o *Output) UpdateFrame(width, height int, y, u, v []byte, strideY, strideU, strideV int) error {
	if int32(width) != o.texW || int32(height) != o.texH {
		o.texture.Destroy()
		texture, err := o.Renderer.CreateTexture(uint32(sdl.PIXELFORMAT_IYUV), sdl.TEXTUREACCESS_STREAMING, int32(width), int32(height))
		if err != nil {
			return fmt.Errorf("output: recreate texture: %w", err)
		}
		o.texture = texture
		o.texW, o.texH = int32(width), int32(height)
	}

	if err := o.texture.UpdateYUV(nil,
		y, strideY,
		u, strideU,
		v, strideV,
	); err != nil {
		return fmt.Errorf("output: upload frame: %w", err)
	}
	return nil
}

// Present clears, copies the current texture and flips the renderer
// (spec §4.4's "present" step).
func (o *Output) Present() error {
	if err := o.Renderer.Clear(); err != nil {
		return fmt.Errorf("output: clear: %w", err)
	}
	if err := o.Renderer.Copy(o.texture, nil, nil); err != nil {
		return fmt.Errorf("output: copy: %w", err)
	}
	o.Renderer.Present()
	return nil
}

// Close tears down every SDL2 resource this Output owns. Safe to call
// once after the player's shutdown drain completes.
func (o *Output) Close() {
	if o.AudioDeviceID != 0 {
		sdl.CloseAudioDevice(o.AudioDeviceID)
	}
	if o.texture != nil {
		o.texture.Destroy()
	}
	if o.Renderer != nil {
		o.Renderer.Destroy()
	}
	if o.Window != nil {
		o.Window.Destroy()
	}
}
