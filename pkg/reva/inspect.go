package reva

// WatcherInfo is a point-in-time description of one watcher, for inspection
// tooling. DepIDs lists the dep ids from the last completed run.
type WatcherInfo struct {
	ID     uint64   `json:"id" yaml:"id"`
	Lazy   bool     `json:"lazy" yaml:"lazy"`
	Sync   bool     `json:"sync" yaml:"sync"`
	User   bool     `json:"user" yaml:"user"`
	Deep   bool     `json:"deep" yaml:"deep"`
	Dirty  bool     `json:"dirty" yaml:"dirty"`
	Active bool     `json:"active" yaml:"active"`
	DepIDs []uint64 `json:"dep_ids" yaml:"dep_ids"`
}

// ComponentInfo is a point-in-time description of one component instance.
type ComponentInfo struct {
	Name     string        `json:"name" yaml:"name"`
	DataKeys []string      `json:"data_keys" yaml:"data_keys"`
	PropKeys []string      `json:"prop_keys" yaml:"prop_keys"`
	Computed []string      `json:"computed" yaml:"computed"`
	Methods  []string      `json:"methods" yaml:"methods"`
	Watchers []WatcherInfo `json:"watchers" yaml:"watchers"`
}

// Info snapshots the watcher's state. Untracked.
func (w *Watcher) Info() WatcherInfo {
	w.depMu.Lock()
	depIDs := make([]uint64, len(w.deps))
	for i, d := range w.deps {
		depIDs[i] = d.id
	}
	w.depMu.Unlock()

	return WatcherInfo{
		ID:     w.id,
		Lazy:   w.lazy,
		Sync:   w.sync,
		User:   w.user,
		Deep:   w.deep,
		Dirty:  w.dirty,
		Active: w.active,
		DepIDs: depIDs,
	}
}

// Inspect snapshots the component's namespaces and watchers. Key reads go
// through the untracked paths, so inspection never creates dependency edges.
func (c *Component) Inspect() ComponentInfo {
	info := ComponentInfo{Name: c.name}

	if c.data != nil {
		c.data.mu.RLock()
		info.DataKeys = append(info.DataKeys, c.data.keys...)
		c.data.mu.RUnlock()
	}
	if c.props != nil {
		c.props.mu.RLock()
		info.PropKeys = append(info.PropKeys, c.props.keys...)
		c.props.mu.RUnlock()
	}
	info.Computed = sortedKeys(c.computedWatchers)
	info.Methods = sortedKeys(c.methods)

	c.watcherMu.Lock()
	watchers := make([]*Watcher, len(c.watchers))
	copy(watchers, c.watchers)
	c.watcherMu.Unlock()

	for _, w := range watchers {
		info.Watchers = append(info.Watchers, w.Info())
	}
	return info
}
