// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"os/signal"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/f-secure-foundry/fastbooted/internal/oracle"
	"github.com/f-secure-foundry/fastbooted/internal/solver"
)

type Config struct {
	input  string
	output string
	slot   int

	solver.Config
}

// Report represents the recovery outcome for a vectors dump.
type Report struct {
	Input    string       `yaml:"input"`
	Keyslots []SlotReport `yaml:"keyslots"`
}

// SlotReport represents the recovery outcome for a single keyslot.
type SlotReport struct {
	Slot     int      `yaml:"slot"`
	Key      string   `yaml:"key,omitempty"`
	Words    []string `yaml:"words,omitempty"`
	Zero     bool     `yaml:"zero,omitempty"`
	Error    string   `yaml:"error,omitempty"`
	Duration string   `yaml:"duration"`
}

var conf *Config

func init() {
	log.SetFlags(0)
	log.SetOutput(os.Stdout)

	conf = &Config{}

	flag.Usage = func() {
		fmt.Println(usage)
	}

	flag.StringVar(&conf.input, "i", "", "vectors dump")
	flag.StringVar(&conf.output, "o", "se-recover.yaml", "YAML report path")
	flag.IntVar(&conf.slot, "s", -1, "keyslot index within the dump")
	flag.IntVar(&conf.Workers, "w", 0, "parallel workers")
	flag.Uint64Var(&conf.Start, "start", 0, "first candidate key word")
	flag.Uint64Var(&conf.End, "end", 0, "candidate key word limit, exclusive")
}

func main() {
	flag.Parse()

	if len(conf.input) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	log.Println(welcome)

	buf, err := ioutil.ReadFile(conf.input)

	if err != nil {
		log.Fatal(err)
	}

	vectors, err := oracle.ParseVectors(buf)

	if err != nil {
		log.Fatalf("invalid dump, %v", err)
	}

	if conf.slot >= len(vectors) {
		log.Fatalf("invalid keyslot %d, dump holds %d", conf.slot, len(vectors))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	report := &Report{
		Input: conf.input,
	}

	for slot, v := range vectors {
		if conf.slot >= 0 && slot != conf.slot {
			continue
		}

		report.Keyslots = append(report.Keyslots, recoverSlot(ctx, slot, v))

		if ctx.Err() != nil {
			break
		}
	}

	if err = writeReport(report); err != nil {
		log.Fatal(err)
	}
}

func recoverSlot(ctx context.Context, slot int, v *oracle.Vectors) (r SlotReport) {
	r.Slot = slot
	start := time.Now()

	defer func() {
		r.Duration = time.Since(start).Round(time.Millisecond).String()
	}()

	// a zero key needs no search
	if v.Retained[4] == v.Retained[0] {
		log.Printf("keyslot %2d: zero key", slot)
		r.Zero = true
		return
	}

	log.Printf("keyslot %2d: searching", slot)

	words, err := solver.Recover(ctx, v, conf.Config)

	if err != nil {
		log.Printf("keyslot %2d: %v", slot, err)
		r.Error = err.Error()
		return
	}

	for _, w := range words {
		r.Words = append(r.Words, fmt.Sprintf("0x%08x", w))
	}

	r.Key = hex.EncodeToString(solver.Key(words[:]))
	log.Printf("keyslot %2d: %s", slot, r.Key)

	return
}

func writeReport(report *Report) (err error) {
	out, err := yaml.Marshal(report)

	if err != nil {
		return
	}

	if err = ioutil.WriteFile(conf.output, out, 0600); err != nil {
		return
	}

	log.Printf("report written to %s", conf.output)

	return
}
