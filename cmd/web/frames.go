package main

import "github.com/myrjola/interrogame/internal/game"

// frameBuffer absorbs reveal frames while the SSE consumer catches up. At
// typewriter pace a few hundred frames is seconds of animation.
const frameBuffer = 1024

// beginFrames publishes a fresh frame channel for the session and points the
// engine's sink at it. The returned finish function closes the channel and
// unpublishes it; call it once the producing operation has returned.
func (app *application) beginFrames(sessionID string) func() {
	channel := make(chan game.Frame, frameBuffer)
	app.frameMu.Lock()
	app.frameChannel = channel
	app.frameMu.Unlock()
	app.frames.Publish(sessionID, channel)
	return func() {
		app.frameMu.Lock()
		if app.frameChannel == channel {
			app.frameChannel = nil
		}
		app.frameMu.Unlock()
		close(channel)
		app.frames.Unpublish(sessionID)
	}
}

// emitFrame is the engine's FrameSink. Frames are dropped when the buffer is
// full or no operation is producing: a lagging consumer only loses animation
// frames, the complete text still arrives with the operation's response.
func (app *application) emitFrame(frame game.Frame) {
	app.frameMu.Lock()
	channel := app.frameChannel
	app.frameMu.Unlock()
	if channel == nil {
		return
	}
	select {
	case channel <- frame:
	default:
	}
}
