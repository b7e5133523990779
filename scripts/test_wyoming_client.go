package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"net"
	"time"

	"github.com/jmservera/casabot/internal/config"
	"github.com/jmservera/casabot/internal/protocol"
)

const (
	sampleRate = 16000
	sampleSize = 2 // 16-bit PCM
	channels   = 1
	chunkBytes = 4096
)

// test_wyoming_client is a manual smoke-test client: it connects to a
// running server, queries its capabilities, streams a synthetic utterance,
// and prints whatever comes back.
func main() {
	uri := flag.String("uri", "tcp://127.0.0.1:10300", "Server URI (tcp://host:port or unix://path)")
	seconds := flag.Float64("seconds", 2.0, "Length of the synthetic utterance")
	tone := flag.Float64("tone", 440.0, "Sine tone frequency in Hz")
	flag.Parse()

	server := config.ServerConfig{ListenURI: *uri}
	network := server.ListenNetwork()
	address := server.ListenAddress()
	if network == "" {
		log.Fatalf("Invalid server URI %q", *uri)
	}

	conn, err := net.DialTimeout(network, address, 5*time.Second)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", *uri, err)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)

	// Ask the server what it offers
	if err := protocol.WriteEvent(conn, protocol.DescribeEvent()); err != nil {
		log.Fatalf("Failed to send describe: %v", err)
	}

	infoEvent, err := protocol.ReadEvent(reader)
	if err != nil {
		log.Fatalf("Failed to read info: %v", err)
	}
	printInfo(infoEvent)

	// Stream one synthetic utterance
	audio := sineWave(*tone, *seconds)
	fmt.Printf("Sending %d bytes of %0.1fs synthetic audio...\n", len(audio), *seconds)

	start := &protocol.AudioStart{Rate: sampleRate, Width: sampleSize, Channels: channels}
	if err := protocol.WriteEvent(conn, start.Event()); err != nil {
		log.Fatalf("Failed to send audio-start: %v", err)
	}

	for offset := 0; offset < len(audio); offset += chunkBytes {
		end := offset + chunkBytes
		if end > len(audio) {
			end = len(audio)
		}

		chunk := &protocol.AudioChunk{
			Rate:     sampleRate,
			Width:    sampleSize,
			Channels: channels,
			Audio:    audio[offset:end],
		}
		if err := protocol.WriteEvent(conn, chunk.Event()); err != nil {
			log.Fatalf("Failed to send audio-chunk: %v", err)
		}
	}

	if err := protocol.WriteEvent(conn, (&protocol.AudioStop{}).Event()); err != nil {
		log.Fatalf("Failed to send audio-stop: %v", err)
	}

	// Wait for the result
	if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		log.Fatalf("Failed to set read deadline: %v", err)
	}
	result, err := protocol.ReadEvent(reader)
	if err != nil {
		log.Fatalf("Failed to read result: %v", err)
	}

	switch result.Type {
	case protocol.EventTypeTranscript:
		transcript, err := protocol.ParseTranscript(result)
		if err != nil {
			log.Fatalf("Malformed transcript: %v", err)
		}
		fmt.Printf("Transcript: %q\n", transcript.Text)

	case protocol.EventTypeError:
		errEvent, err := protocol.ParseError(result)
		if err != nil {
			log.Fatalf("Malformed error event: %v", err)
		}
		fmt.Printf("Server error (%s): %s\n", errEvent.Context, errEvent.Text)

	default:
		fmt.Printf("Unexpected event type: %s\n", result.Type)
	}
}

// sineWave generates 16-bit little-endian mono PCM of the given tone.
// A pure tone will not transcribe to anything useful, but it exercises the
// full event path against a real backend.
func sineWave(frequency, seconds float64) []byte {
	samples := int(float64(sampleRate) * seconds)
	audio := make([]byte, samples*sampleSize)

	for i := 0; i < samples; i++ {
		value := math.Sin(2 * math.Pi * frequency * float64(i) / sampleRate)
		sample := int16(value * 0.3 * math.MaxInt16)
		binary.LittleEndian.PutUint16(audio[i*sampleSize:], uint16(sample))
	}

	return audio
}

func printInfo(e *protocol.Event) {
	if e.Type != protocol.EventTypeInfo {
		fmt.Printf("Expected info event, got %s\n", e.Type)
		return
	}

	var info protocol.Info
	if len(e.Data) > 0 {
		if err := json.Unmarshal(e.Data, &info); err != nil {
			log.Fatalf("Malformed info event: %v", err)
		}
	}

	for _, program := range info.ASR {
		fmt.Printf("Program: %s (%s)\n", program.Name, program.Description)
		for _, model := range program.Models {
			fmt.Printf("  Model: %s languages=%v\n", model.Name, model.Languages)
		}
	}
}
