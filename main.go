package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"gopkg.in/yaml.v3"

	"YoloFeedServer/adhoc"
	"YoloFeedServer/feed"
	"YoloFeedServer/iface"
	"YoloFeedServer/logger"
	"YoloFeedServer/monitor"
)

type configStruct struct {
	HTTPPort        int       `yaml:"HTTPPort"`
	AdhocPort       int       `yaml:"AdhocPort"`
	UseRegServer    bool      `yaml:"UseRegServer"`
	RegServerPort   int       `yaml:"RegServerPort"`
	RegServerHost   string    `yaml:"RegServerHost"`
	InputSize       int       `yaml:"inputSize"`
	ShrinkFactor    int       `yaml:"shrinkFactor"`
	Anchors         int       `yaml:"anchors"`
	BatchSize       int       `yaml:"batchSize"`
	ScalingFactor   float32   `yaml:"scalingFactor"`
	Augment         bool      `yaml:"augment"`
	MultiScale      []float32 `yaml:"multiScale"`
	CategoriesFile  string    `yaml:"categoriesFile"`
	AnnotationsFile string    `yaml:"annotationsFile"`
	Seed            int64     `yaml:"seed"`
}

type feedEntry struct {
	flow        *feed.Flow
	Description string
	CreatedAt   time.Time
}

type session struct {
	id          string
	feedID      string
	flow        *feed.Flow
	conn        *websocket.Conn
	lastActive  time.Time
	closeOnce   sync.Once
	cancelTimer chan struct{}
	cancelOnce  sync.Once
}

var (
	feedMu    sync.RWMutex
	feeds     = map[string]*feedEntry{}
	sessionMu sync.RWMutex
	sessions  = map[string]*session{}
	upgrader  = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	// Training steps can be slow; a session is released only after a full
	// minute without a batch pull.
	idleTimeout = 60 * time.Second
)

func GetOutboundIP() (string, error) {
	// 8.8.8.8 is only used to pick a route, no packets are actually sent.
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)

	return localAddr.IP.String(), nil
}

func releaseSession(sessionID string) bool {
	sessionMu.Lock()
	s, ok := sessions[sessionID]
	if ok {
		delete(sessions, sessionID)
	}
	sessionMu.Unlock()
	if !ok {
		return false
	}

	s.closeOnce.Do(func() {
		if s.conn != nil {
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session idle, released"))
			_ = s.conn.Close()
		}
	})
	s.cancelOnce.Do(func() {
		close(s.cancelTimer)
	})
	return true
}

func startIdleMonitor(s *session) {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-s.cancelTimer:
				return
			case <-ticker.C:
				if time.Since(s.lastActive) > idleTimeout {
					_ = releaseSession(s.id)
					fmt.Println("IdleMonitor timed out for session:", s.id)
					return
				}
			}
		}
	}()
}

// writeBatch serializes one batch as a single binary ws message:
// for images then labels, a uint32 rank followed by uint32 dims, then both
// raw float32 payloads back to back. Everything little-endian.
func writeBatch(conn *websocket.Conn, b iface.Batch) error {
	buf := &bytes.Buffer{}
	writeShape := func(shape []int) error {
		if err := binary.Write(buf, binary.LittleEndian, uint32(len(shape))); err != nil {
			return err
		}
		for _, d := range shape {
			if err := binary.Write(buf, binary.LittleEndian, uint32(d)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := writeShape(b.Images.Shape()); err != nil {
		return err
	}
	if err := writeShape(b.Labels.Shape()); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, b.Images.Data().([]float32)); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, b.Labels.Data().([]float32)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.BinaryMessage, buf.Bytes())
}

func main() {
	err := logger.InitProduction()
	if err != nil {
		return
	}
	defer logger.Sync()

	ip, err := GetOutboundIP()
	if err != nil {
		fmt.Println("Failed to get outbound IP:", err)
		return
	}
	fmt.Println("Outbound IP:", ip)

	fmt.Println(strings.Repeat("#", 64))
	CPUNum := runtime.NumCPU()
	runtime.GOMAXPROCS(CPUNum)
	fmt.Printf("CPU Cores: %d\n", CPUNum)
	configData, err := os.ReadFile("config.yaml")
	if err != nil {
		fmt.Println("Failed to read config file:", err)
		return
	}
	config := configStruct{}
	err = yaml.Unmarshal(configData, &config)
	if err != nil {
		fmt.Println("Failed to parse config file:", err)
		return
	}
	fmt.Println(" HTTP  Port:", config.HTTPPort)
	fmt.Println(" Adhoc Port:", config.AdhocPort)
	fmt.Println(" Input Size:", config.InputSize, " Batch Size:", config.BatchSize)
	fmt.Println(strings.Repeat("#", 64))

	// The dataset and class list are read once at startup; every feed
	// created through the API shares them.
	classes, err := feed.ReadCategories(config.CategoriesFile)
	if err != nil {
		fmt.Println("Failed to read categories:", err)
		return
	}
	paths, labels, err := feed.LoadAnnotations(config.AnnotationsFile)
	if err != nil {
		fmt.Println("Failed to read annotations:", err)
		return
	}
	fmt.Printf("Dataset: %d images, %d classes\n", len(paths), len(classes))

	baseCfg := feed.Config{
		InputSize:     config.InputSize,
		ShrinkFactor:  config.ShrinkFactor,
		Anchors:       config.Anchors,
		MultiScale:    config.MultiScale,
		BatchSize:     config.BatchSize,
		ScalingFactor: config.ScalingFactor,
		Augment:       config.Augment,
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	go monitor.StartMon(config.AdhocPort, ctx)

	instanceClass := adhoc.PlainFeeder
	if config.Augment {
		instanceClass = adhoc.AugmentedFeeder
	}
	wg.Add(1)
	if config.UseRegServer {
		adhoc.RegServerCfg = adhoc.RegServerConfig{}
		adhoc.RegServerCfg.SetAddress(config.RegServerHost, config.RegServerPort)
		go adhoc.SendAliveMessage(ip, config.HTTPPort, instanceClass, ctx, &wg)
	} else {
		fmt.Println("UseRegServer is set to false, skipping registration")
		wg.Done()
	}

	r := gin.Default()
	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.POST("/api/feeds", func(c *gin.Context) {
		var req struct {
			Description string `json:"description"`
			BatchSize   int    `json:"batchSize"`
			Augment     *bool  `json:"augment"`
			Seed        *int64 `json:"seed"`
		}
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cfg := baseCfg
		if req.BatchSize > 0 {
			cfg.BatchSize = req.BatchSize
		}
		if req.Augment != nil {
			cfg.Augment = *req.Augment
		}
		seed := config.Seed
		if req.Seed != nil {
			seed = *req.Seed
		}
		var augmenter iface.Augmenter
		if cfg.Augment {
			augmenter = feed.NewRandomAffine(seed)
		}
		flow, err := feed.NewFlow(cfg, paths, labels, classes, nil, augmenter, seed)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id := uuid.New().String()
		feedMu.Lock()
		feeds[id] = &feedEntry{flow: flow, Description: req.Description, CreatedAt: time.Now()}
		feedMu.Unlock()
		logger.Log().Info("Created feed " + id)
		c.JSON(http.StatusOK, gin.H{"data": id})
	})
	r.GET("/api/feeds/check/:id", func(c *gin.Context) {
		id := c.Param("id")
		feedMu.RLock()
		entry, exists := feeds[id]
		feedMu.RUnlock()
		if !exists {
			c.JSON(404, gin.H{"error": "Feed not found"})
			return
		}
		c.JSON(200, gin.H{"data": gin.H{
			"description": entry.Description,
			"createdAt":   entry.CreatedAt,
			"stats":       entry.flow.Stats(),
		}})
	})
	r.POST("/api/feeds/:id/release", func(c *gin.Context) {
		id := c.Param("id")
		feedMu.Lock()
		_, exists := feeds[id]
		if exists {
			delete(feeds, id)
		}
		feedMu.Unlock()
		if !exists {
			c.JSON(404, gin.H{"error": "Feed not found"})
			return
		}
		// Sessions on this feed are released as they idle out.
		c.JSON(200, gin.H{"data": "Feed released"})
	})
	r.POST("/api/feeds/:id/alloc", func(c *gin.Context) {
		id := c.Param("id")
		feedMu.RLock()
		entry, exists := feeds[id]
		feedMu.RUnlock()
		if !exists {
			c.JSON(404, gin.H{"error": "Feed not found"})
			return
		}
		sessionID := uuid.New().String()
		s := &session{
			id:          sessionID,
			feedID:      id,
			flow:        entry.flow,
			lastActive:  time.Now(),
			cancelTimer: make(chan struct{}),
		}
		sessionMu.Lock()
		sessions[sessionID] = s
		sessionMu.Unlock()
		c.JSON(http.StatusOK, gin.H{
			"sessionID": sessionID,
			"feedID":    id,
			"wsURL":     fmt.Sprintf("ws://%s/ws/%s", c.Request.Host, sessionID),
			"timeoutMs": idleTimeout.Milliseconds(),
		})
	})
	r.GET("/ws/:sessionID", func(c *gin.Context) {
		sessionID := c.Param("sessionID")
		sessionMu.RLock()
		s, exists := sessions[sessionID]
		sessionMu.RUnlock()
		if !exists {
			c.JSON(404, gin.H{"error": "Session not found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		s.conn = conn

		startIdleMonitor(s)
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				releaseSession(sessionID)
				fmt.Println("Connection closed for session:", sessionID, "error:", err)
				return
			}
			s.lastActive = time.Now()
			switch mt {
			case websocket.TextMessage:
				if string(msg) != "next" {
					_ = conn.WriteMessage(websocket.TextMessage, []byte("unsupported command"))
					continue
				}
				monitor.WSRequestsTotal.Inc()
				batch, err := s.flow.Next()
				if err != nil {
					_ = conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("feed error: %v", err)))
					continue
				}
				if err := writeBatch(conn, batch); err != nil {
					releaseSession(sessionID)
					return
				}
			default:
				_ = conn.WriteMessage(websocket.TextMessage, []byte("unsupported message type"))
			}
		}
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.HTTPPort),
		Handler: r,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Println("HTTP server error:", err)
		}
	}()
	fmt.Println("Feed server listening on port", config.HTTPPort)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	fmt.Println("Done")
	wg.Wait()
	fmt.Println("Safely exited")
}
