package tts

/*
#cgo LDFLAGS: -lespeak-ng
#include <stdlib.h>
#include <string.h>
#include <espeak-ng/speak_lib.h>

static int
espeak_init(const char *voice)
{
	if (espeak_Initialize(AUDIO_OUTPUT_SYNCH_PLAYBACK, 500, NULL, 0) < 0)
	{ return -1; }

	espeak_VOICE specs = { .languages = voice };
	if (espeak_SetVoiceByProperties(&specs) != EE_OK)
	{ return -2; }

	return 0;
}

static int
espeak_say(const char *text)
{
	if (!text)
	{ return -1; }

	if (espeak_Synth(text, strlen(text) + 1, 0, POS_CHARACTER, 0, espeakCHARS_AUTO, NULL, NULL) != EE_OK)
	{ return -2; }

	return espeak_Synchronize() == EE_OK ? 0 : -3;
}

static void
espeak_stop(void)
{
	espeak_Cancel();
}
*/
import "C"

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unsafe"
)

// Espeak speaks through espeak-ng on the default output device. Speak
// blocks until playback finishes.
type Espeak struct {
	mu     sync.Mutex
	closed bool
}

func NewEspeak(voice string) (*Espeak, error) {
	if voice == "" {
		voice = "en"
	}

	cvoice := C.CString(voice)
	defer C.free(unsafe.Pointer(cvoice))

	if rc := C.espeak_init(cvoice); rc != 0 {
		return nil, fmt.Errorf("espeak init (voice %q) failed: %d", voice, int(rc))
	}
	return &Espeak{}, nil
}

func (e *Espeak) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errors.New("espeak closed")
	}

	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			C.espeak_stop()
		case <-done:
		}
	}()
	defer close(done)

	if rc := C.espeak_say(ctext); rc != 0 {
		return fmt.Errorf("espeak_say failed: %d", int(rc))
	}
	return ctx.Err()
}

func (e *Espeak) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.closed {
		C.espeak_Terminate()
		e.closed = true
	}
}
