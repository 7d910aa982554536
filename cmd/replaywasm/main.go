//go:build js && wasm

// Command replaywasm exposes round replays to the browser as the global
// royalReplay object:
//
//	royalReplay.tape(specJSON[, heroSeat]) -> {ok, tape} | {ok:false, error}
//	royalReplay.check(specJSON)            -> {ok, steps} | {ok:false, error}
package main

import (
	"encoding/json"
	"errors"
	"syscall/js"

	"royalcourt/replay"
)

type result struct {
	OK    bool                `json:"ok"`
	Tape  *replay.ReplayTape  `json:"tape,omitempty"`
	Steps int                 `json:"steps,omitempty"`
	Error *replay.ReplayError `json:"error,omitempty"`
}

func failure(reason, msg string) result {
	return result{Error: &replay.ReplayError{StepIndex: -1, Reason: reason, Message: msg}}
}

func main() {
	api := js.Global().Get("Object").New()
	api.Set("tape", js.FuncOf(func(_ js.Value, args []js.Value) any {
		spec, bad := specArg(args)
		if bad != nil {
			return encode(*bad)
		}
		if len(args) > 1 && args[1].Type() == js.TypeNumber {
			spec.HeroSeat = args[1].Int()
		}
		return encode(run(spec, true))
	}))
	api.Set("check", js.FuncOf(func(_ js.Value, args []js.Value) any {
		spec, bad := specArg(args)
		if bad != nil {
			return encode(*bad)
		}
		return encode(run(spec, false))
	}))
	js.Global().Set("royalReplay", api)

	// keep the callbacks alive
	select {}
}

func specArg(args []js.Value) (replay.RoundSpec, *result) {
	var spec replay.RoundSpec
	if len(args) == 0 || args[0].Type() != js.TypeString {
		r := failure("invalid_request", "expected a JSON round spec")
		return spec, &r
	}
	if err := json.Unmarshal([]byte(args[0].String()), &spec); err != nil {
		r := failure("invalid_json", err.Error())
		return spec, &r
	}
	return spec, nil
}

func run(spec replay.RoundSpec, withTape bool) result {
	tape, err := replay.GenerateTape(spec)
	if err != nil {
		var re *replay.ReplayError
		if errors.As(err, &re) {
			return result{Error: re}
		}
		return failure("replay_generation_failed", err.Error())
	}
	if !withTape {
		return result{OK: true, Steps: len(tape.Events)}
	}
	return result{OK: true, Tape: tape}
}

func encode(r result) string {
	b, err := json.Marshal(r)
	if err != nil {
		b, _ = json.Marshal(failure("marshal_failed", err.Error()))
	}
	return string(b)
}
