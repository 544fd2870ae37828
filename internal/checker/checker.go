package checker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// Checker periodically runs the batch for the current date.
type Checker struct {
	service       *Service
	checkInterval time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

// New creates a new Checker.
func New(service *Service, interval time.Duration) *Checker {
	return &Checker{
		service:       service,
		checkInterval: interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the periodic checking process. A non-positive interval
// leaves the checker idle.
func (c *Checker) Start() {
	if c.checkInterval <= 0 {
		log.Println("background checker disabled")
		return
	}
	log.Printf("starting background checker with interval: %s", c.checkInterval)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.checkInterval)
		defer ticker.Stop()

		// Perform an initial check on startup
		c.runToday()

		for {
			select {
			case <-ticker.C:
				c.runToday()
			case <-c.stopChan:
				log.Println("stopping background checker...")
				return
			}
		}
	}()
}

// Stop shuts down the checker. A batch already in flight runs to completion.
func (c *Checker) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
	c.wg.Wait()
	log.Println("background checker stopped")
}

func (c *Checker) runToday() {
	date := c.service.Today()
	summary, err := c.service.RunDate(context.Background(), date)
	if errors.Is(err, ErrRunInProgress) {
		log.Printf("skipping scheduled run %s: %v", date, err)
		return
	}
	if err != nil {
		log.Printf("scheduled run %s failed: %v", date, err)
		return
	}
	log.Printf("scheduled run %s checked %d of %d targets", date, summary.CheckedCount, summary.TotalTargets)
}
