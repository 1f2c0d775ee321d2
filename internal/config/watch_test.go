package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ResolverConfigWatcher", func() {
	var (
		tempDir string
		path    string
	)

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "watch-test")
		Expect(err).NotTo(HaveOccurred())
		path = filepath.Join(tempDir, "headers.yaml")
		Expect(os.WriteFile(path, []byte("Authorization: token"), 0644)).To(Succeed())
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	It("invokes the callback when the watched file is rewritten", func() {
		w, err := NewResolverConfigWatcher(logr.Discard())
		Expect(err).NotTo(HaveOccurred())
		defer w.Close()

		reloaded := make(chan struct{}, 1)
		Expect(w.Watch(path, func() { reloaded <- struct{}{} })).To(Succeed())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		Expect(os.WriteFile(path, []byte("Authorization: new-token"), 0644)).To(Succeed())

		Eventually(reloaded, 2*time.Second).Should(Receive())
	})

	It("treats an empty path as a no-op", func() {
		w, err := NewResolverConfigWatcher(logr.Discard())
		Expect(err).NotTo(HaveOccurred())
		defer w.Close()

		Expect(w.Watch("", func() {})).To(Succeed())
	})
})
