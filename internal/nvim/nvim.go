// Package nvim asks a running Neovim to reload buffers for files changed on
// disk.
package nvim

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/neovim/go-client/nvim"
)

// AddressEnv is read when no address is given explicitly.
const AddressEnv = "NVIM_LISTEN_ADDRESS"

// ErrNoAddress means neither a flag nor the environment named an instance.
var ErrNoAddress = errors.New("no neovim address: set --nvim or " + AddressEnv)

// ResolveAddress prefers the explicit address over the environment.
func ResolveAddress(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if addr := os.Getenv(AddressEnv); addr != "" {
		return addr, nil
	}
	return "", ErrNoAddress
}

// Manager holds a connection to a Neovim instance.
type Manager struct {
	nvim *nvim.Nvim
	root string
}

// Connect dials the instance at addr. Paths given to Reload are resolved
// against root.
func Connect(ctx context.Context, addr, root string) (*Manager, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := nvim.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to neovim at %s: %w", addr, err)
	}
	return &Manager{nvim: v, root: root}, nil
}

// Close disconnects from Neovim.
func (m *Manager) Close() {
	if m.nvim != nil {
		m.nvim.Close()
	}
}

// Reload runs checktime so unmodified buffers pick up the new file contents.
// It returns the changed paths that had a loaded buffer.
func (m *Manager) Reload(paths []string) ([]string, error) {
	bufnrs := make([]int, len(paths))

	b := m.nvim.NewBatch()
	for i, p := range paths {
		abs, err := filepath.Abs(filepath.Join(m.root, filepath.FromSlash(p)))
		if err != nil {
			return nil, err
		}
		b.Call("bufnr", &bufnrs[i], abs)
	}
	b.Command("checktime")
	if err := b.Execute(); err != nil {
		return nil, fmt.Errorf("checktime failed: %w", err)
	}

	var loaded []string
	for i, p := range paths {
		if bufnrs[i] > 0 {
			loaded = append(loaded, p)
		}
	}
	sort.Strings(loaded)
	return loaded, nil
}

// ReloadChanged connects, reloads and disconnects. It is what apply uses
// after a successful run.
func ReloadChanged(ctx context.Context, explicitAddr, root string, paths []string) ([]string, error) {
	addr, err := ResolveAddress(explicitAddr)
	if err != nil {
		return nil, err
	}
	m, err := Connect(ctx, addr, root)
	if err != nil {
		return nil, err
	}
	defer m.Close()
	return m.Reload(paths)
}
