package server

import (
	"encoding/json"
	"io/fs"
	"net/http"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/richard-vock/beer-display-viewer/internal/store"
)

type statusAPI struct {
	version   string
	target    string
	cacheRoot string
	store     *store.Store
	hub       *Hub
	started   time.Time
}

type statusResponse struct {
	Version   string `json:"version"`
	Target    string `json:"target"`
	UptimeSec int64  `json:"uptime_sec"`
	Clients   int    `json:"clients"`
	Cache     struct {
		Root  string `json:"root"`
		Files int    `json:"files"`
		Bytes int64  `json:"bytes"`
	} `json:"cache"`
	LastRun    *store.SnapshotRun  `json:"last_run"`
	RecentRuns []store.SnapshotRun `json:"recent_runs,omitempty"`
	Host       hostInfo            `json:"host"`
}

type hostInfo struct {
	Load1           float64 `json:"load1"`
	MemUsedPercent  float64 `json:"mem_used_percent"`
	DiskUsedPercent float64 `json:"disk_used_percent"`
}

// get handles GET /.beerview/status with enough diagnostics to check a
// kiosk from an SSH session.
func (a *statusAPI) get(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Version:   a.version,
		Target:    a.target,
		UptimeSec: int64(time.Since(a.started).Seconds()),
		Clients:   a.hub.ClientCount(),
	}
	resp.Cache.Root = a.cacheRoot
	resp.Cache.Files, resp.Cache.Bytes = cacheSize(a.cacheRoot)

	if a.store != nil {
		if run, err := a.store.LatestRun(); err == nil {
			resp.LastRun = run
		}
		if runs, err := a.store.RecentRuns(20); err == nil {
			resp.RecentRuns = runs
		}
	}

	resp.Host = hostStatus(a.cacheRoot)

	writeJSON(w, http.StatusOK, resp)
}

// hostStatus samples host health. Each probe fails soft so a platform
// without one of the sources still reports the rest.
func hostStatus(path string) hostInfo {
	var h hostInfo
	if avg, err := load.Avg(); err == nil {
		h.Load1 = avg.Load1
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		h.MemUsedPercent = vm.UsedPercent
	}
	if du, err := disk.Usage(path); err == nil {
		h.DiskUsedPercent = du.UsedPercent
	}
	return h
}

func cacheSize(root string) (files int, bytes int64) {
	filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			files++
			bytes += info.Size()
		}
		return nil
	})
	return files, bytes
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
