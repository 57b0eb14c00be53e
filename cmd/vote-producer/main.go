package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/skatehubba/skate-core/internal/domain"
	"github.com/skatehubba/skate-core/internal/kafka"
)

var judgePrefixes = []string{
	"Ollie", "Heelflip", "Kickflip", "Nollie", "Shuvit", "Varial", "Hardflip", "Impossible",
	"Boneless", "Manual", "Grind", "Slide", "Tailslide", "Nosegrind", "Smith", "Feeble",
}

var votes = []string{string(domain.VoteLanded), string(domain.VoteLetter), string(domain.VoteDispute)}

func judgeName(idx int) string {
	return fmt.Sprintf("%s%d", judgePrefixes[idx%len(judgePrefixes)], idx/len(judgePrefixes)+1)
}

// pickVote favours LANDED/LETTER so most submissions resolve
func pickVote() string {
	switch n := rand.Intn(100); {
	case n < 55:
		return votes[0]
	case n < 95:
		return votes[1]
	default:
		return votes[2]
	}
}

func main() {
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "skate-judge-votes", "Kafka topic")
	submissionsFlag := flag.String("submissions", "", "Submission IDs to vote on (comma-separated); random IDs when empty")
	submissionCount := flag.Int("count", 10, "Number of random submission IDs when -submissions is empty")
	judges := flag.Int("judges", 6, "Judges voting on each submission")
	rate := flag.Int("rate", 100, "Votes per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = until every judge has voted)")
	token := flag.String("token", os.Getenv("SKATE_KAFKA_PRODUCER_TOKEN"), "Producer token expected by the vote consumer")
	flag.Parse()

	brokerList := strings.Split(*brokers, ",")

	submissions := strings.Split(*submissionsFlag, ",")
	if *submissionsFlag == "" {
		submissions = make([]string, *submissionCount)
		for i := range submissions {
			submissions[i] = uuid.NewString()
		}
	}

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("  Judge Vote Producer")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Brokers:          %s\n", *brokers)
	fmt.Printf("  Topic:            %s\n", *topic)
	fmt.Printf("  Submissions:      %d\n", len(submissions))
	fmt.Printf("  Judges each:      %d\n", *judges)
	fmt.Printf("  Votes/sec:        %d\n", *rate)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}

	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	shutdown := func(reason string) {
		fmt.Printf("\n\n%s, shutting down...\n", reason)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("\nCompleted. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	// Every (submission, judge) pair votes once, in shuffled order so
	// judges on the same submission race each other.
	type pair struct{ submission, judge int }
	pairs := make([]pair, 0, len(submissions)*(*judges))
	for s := range submissions {
		for j := 0; j < *judges; j++ {
			pairs = append(pairs, pair{s, j})
		}
	}
	rand.Shuffle(len(pairs), func(i, j int) { pairs[i], pairs[j] = pairs[j], pairs[i] })

	sendVote := func(p pair) {
		event := domain.VoteEvent{
			SubmissionID: submissions[p.submission],
			JudgeID:      judgeName(p.judge),
			Vote:         pickVote(),
			Roles:        []string{domain.RoleJudge},
			Timestamp:    time.Now().UTC(),
		}
		data, err := json.Marshal(event)
		if err != nil {
			log.Printf("Failed to marshal vote: %v", err)
			return
		}
		// Keyed by submission so one partition sees all votes for it
		msg := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(event.SubmissionID),
			Value: sarama.ByteEncoder(data),
		}
		if *token != "" {
			msg.Headers = []sarama.RecordHeader{{
				Key:   []byte(kafka.AuthorizationHeader),
				Value: []byte("Bearer " + *token),
			}}
		}
		producer.Input() <- msg
	}

	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	ticker := time.NewTicker(time.Second / time.Duration(max(*rate, 1)))
	defer ticker.Stop()
	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	next := 0
	for {
		select {
		case <-sigChan:
			shutdown("Interrupted")
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				shutdown("Duration reached")
				return
			}
			if next >= len(pairs) {
				if *duration == 0 {
					shutdown("All votes sent")
					return
				}
				// keep hammering already-voted pairs to exercise duplicate rejection
				rand.Shuffle(len(pairs), func(i, j int) { pairs[i], pairs[j] = pairs[j], pairs[i] })
				next = 0
			}
			sendVote(pairs[next])
			next++

		case <-statsTicker.C:
			fmt.Printf("[%s] Queued: %d | Sent: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				next,
				atomic.LoadInt64(&successCount),
				atomic.LoadInt64(&errorCount),
			)
		}
	}
}
