package modmanager

import (
	"context"
	"fmt"
	"time"

	"mlcore/internal/domain"
)

type downloadResult struct {
	mod *domain.DownloadedMod
	err error
}

// downloadMod runs a remote download to completion, coalescing the
// high-frequency Receiving updates it pushes into at most one published
// progress event per receivingInterval. Any transition into or out of
// Receiving (Waiting->Started, Started->Receiving, Receiving->Finished)
// flushes immediately instead of waiting for the next tick, and a final
// Finished/Finished pair is always published right before returning —
// this is the throttling ModManager::download_mod implements in the
// original actor graph.
func (m *Manager) downloadMod(ctx context.Context, code string, op opKind) (*domain.DownloadedMod, error) {
	if m.remote == nil {
		return nil, fmt.Errorf("remote mod support is not configured")
	}
	id := domain.RemoteIDPrefix + code

	mainCh := make(chan domain.DownloadProgress, 1)
	logoCh := make(chan domain.DownloadProgress, 1)
	resultCh := make(chan downloadResult, 1)

	go func() {
		downloaded, err := m.remote.DownloadMod(ctx, code, mainCh, logoCh)
		resultCh <- downloadResult{mod: &downloaded, err: err}
	}()

	ticker := time.NewTicker(m.receivingInterval)
	defer ticker.Stop()

	lastMain := domain.WaitingProgress()
	lastLogo := domain.WaitingProgress()
	unsent := false

	mainC := (<-chan domain.DownloadProgress)(mainCh)
	logoC := (<-chan domain.DownloadProgress)(logoCh)

	for {
		var tickC <-chan time.Time
		if unsent {
			tickC = ticker.C
		}

		select {
		case res := <-resultCh:
			m.sendDownloadProgress(id, op, domain.FinishedProgress(), domain.FinishedProgress())
			if res.err != nil {
				return nil, res.err
			}
			return res.mod, nil

		case <-tickC:
			unsent = false
			m.sendDownloadProgress(id, op, lastMain, lastLogo)

		case p, ok := <-mainC:
			if !ok {
				mainC = nil
				continue
			}
			prev := lastMain.State
			lastMain = p
			if p.State == domain.DownloadReceiving && prev == domain.DownloadReceiving {
				unsent = true
			} else {
				unsent = false
				m.sendDownloadProgress(id, op, lastMain, lastLogo)
			}

		case p, ok := <-logoC:
			if !ok {
				logoC = nil
				continue
			}
			prev := lastLogo.State
			lastLogo = p
			if p.State == domain.DownloadReceiving && prev == domain.DownloadReceiving {
				unsent = true
			} else {
				unsent = false
				m.sendDownloadProgress(id, op, lastMain, lastLogo)
			}
		}
	}
}

func (m *Manager) sendDownloadProgress(id string, op opKind, main, logo domain.DownloadProgress) {
	progress := domain.DownloadingModProgress(id, main, logo)
	switch op {
	case opInstall:
		m.publish(domain.AddChange(progress))
	case opUpdate:
		m.publish(domain.UpdateChange(progress))
	}
}
