package builder

import (
	"sync"

	"github.com/google/uuid"
	"github.com/vladshiryaev/cx/internal/config"
	"github.com/vladshiryaev/cx/internal/container"
	"github.com/vladshiryaev/cx/internal/sched"
)

// unit-discovery states stored in Context.unitDirDeps.
const (
	stateDiscovered container.Tag = 1 // library not yet available
	stateAvailable  container.Tag = 2 // library built and link-ready
)

// Context is the explicit "build context" design notes §9 calls for in
// place of the source's process-wide globals: one value, threaded
// through every Builder and Job belonging to one invocation of cx.
type Context struct {
	Pool *sched.Pool

	ConfigID string

	mu          sync.Mutex
	profile     config.Profile
	profileTag  uint32
	commonCfg   *config.Section
	lockCfg     *config.Section // resolved from the optional cx.lock.toml, if present
	unitDirDeps *container.FileStateDict // directory path -> state (1 or 2)
	libPaths    map[string]string        // directory path -> library file path, once state==2
	libsTag     container.Tag            // accumulated sum of discovered library tags

	externalLibsSeen map[string]bool
	externalLibs     []string

	// SessionID is a per-invocation identifier, logged once at Trace
	// level when the build starts; other log lines do not carry it.
	SessionID string
}

// NewContext creates a fresh build context with its own worker pool.
func NewContext(workers int) *Context {
	return &Context{
		Pool:             sched.NewPool(workers),
		unitDirDeps:      container.NewFileStateDict(),
		libPaths:         map[string]string{},
		externalLibsSeen: map[string]bool{},
		SessionID:        uuid.NewString(),
	}
}

// claimUnit is the recursion guard's critical section: it returns true
// only the first time dir is claimed, which is exactly when the caller
// must spawn a child builder for it.
func (c *Context) claimUnit(dir string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.unitDirDeps.Find(dir); ok {
		return false
	}
	c.unitDirDeps.Add(stateDiscovered, dir)
	return true
}

// markAvailable flips dir's state to "library built" and accumulates
// its tag into the running libsTag sum.
func (c *Context) markAvailable(dir, libPath string, tag container.Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unitDirDeps.Put(stateAvailable, dir)
	c.libPaths[dir] = libPath
	c.libsTag += tag
}

func (c *Context) addExternalLibs(libs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range libs {
		if !c.externalLibsSeen[l] {
			c.externalLibsSeen[l] = true
			c.externalLibs = append(c.externalLibs, l)
		}
	}
}

func (c *Context) snapshotLibsTag() container.Tag {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.libsTag
}

// snapshotExternalLibs returns the deduplicated -l... flags declared by
// every unit discovered so far, in first-seen order.
func (c *Context) snapshotExternalLibs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.externalLibs))
	copy(out, c.externalLibs)
	return out
}
