package main

import (
	"encoding/json"
	"flag"
	"fmt"
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
	"github.com/mycine-gamification/internal/domain"
	"github.com/mycine-gamification/internal/logger"
)

// activityMix picks a plausible event for a simulated user
func activityMix(r *rand.Rand, userID string, titles int) domain.ActivityEvent {
	title := fmt.Sprintf("title-%04d", r.Intn(titles))
	ev := domain.ActivityEvent{UserID: userID, Timestamp: time.Now().UTC()}
	switch n := r.Intn(100); {
	case n < 45:
		ev.Type = domain.ActivityXPAward
		ev.EventType = domain.EventFirstReviewTitle
		ev.ReferenceID = title
	case n < 65:
		ev.Type = domain.ActivityXPAward
		ev.EventType = domain.EventExtraComment
		ev.ReferenceID = title
	case n < 75:
		ev.Type = domain.ActivityXPAward
		ev.EventType = domain.EventDailyReview
	case n < 95:
		ev.Type = domain.ActivityChallengeProgress
		ev.ChallengeType = domain.ChallengeTypes[r.Intn(len(domain.ChallengeTypes))]
	default:
		ev.Type = domain.ActivityEvaluateAchievements
	}
	return ev
}

func main() {
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "mycine-activity", "Kafka topic")
	totalUsers := flag.Int("users", 500, "Number of simulated users")
	titles := flag.Int("titles", 2000, "Number of simulated titles")
	eventsPerSecond := flag.Int("rate", 50, "Events per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	log, err := logger.New("development")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *totalUsers <= 0 || *titles <= 0 || *eventsPerSecond <= 0 {
		log.Fatal("users, titles and rate must be positive")
	}

	users := make([]string, *totalUsers)
	for i := range users {
		users[i] = uuid.NewString()
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	// keyed by user so each user's events stay ordered on one partition
	config.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewAsyncProducer(strings.Split(*brokers, ","), config)
	if err != nil {
		log.Fatal("failed to create producer", "error", err)
	}

	var successCount, errorCount, sentCount int64
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Warn("producer error", "error", err)
		}
	}()

	log.Info("producing activity events",
		"brokers", *brokers,
		"topic", *topic,
		"users", *totalUsers,
		"rate", *eventsPerSecond,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second / time.Duration(*eventsPerSecond))
	defer ticker.Stop()
	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var deadline <-chan time.Time
	if *duration > 0 {
		deadline = time.After(*duration)
	}

	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	shutdown := func(reason string) {
		log.Info("shutting down", "reason", reason)
		producer.AsyncClose()
		wg.Wait()
		log.Info("completed",
			"sent", atomic.LoadInt64(&sentCount),
			"acked", atomic.LoadInt64(&successCount),
			"errors", atomic.LoadInt64(&errorCount),
		)
	}

	for {
		select {
		case <-sigChan:
			shutdown("signal")
			return

		case <-deadline:
			shutdown("duration reached")
			return

		case <-ticker.C:
			// a small group of heavy users keeps the leaderboard moving
			idx := r.Intn(len(users))
			if r.Intn(100) < 60 {
				idx = r.Intn(min(20, len(users)))
			}
			ev := activityMix(r, users[idx], *titles)

			data, err := json.Marshal(ev)
			if err != nil {
				log.Error("failed to marshal event", "error", err)
				continue
			}
			producer.Input() <- &sarama.ProducerMessage{
				Topic: *topic,
				Key:   sarama.StringEncoder(ev.UserID),
				Value: sarama.ByteEncoder(data),
			}
			atomic.AddInt64(&sentCount, 1)

		case <-statsTicker.C:
			log.Info("progress",
				"sent", atomic.LoadInt64(&sentCount),
				"acked", atomic.LoadInt64(&successCount),
				"errors", atomic.LoadInt64(&errorCount),
			)
		}
	}
}
