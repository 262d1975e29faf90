// Package reconcile — gönderici tarafı mesaj mutabakatı.
//
// Mesaj gönderen client iki bağımsız kanaldan aynı mesajı görür:
// 1. REST yanıtı (kalıcı yazımın kanonik sonucu, server-assigned id ile)
// 2. WebSocket message_received echo'su (oda broadcast'i — gönderen dahil)
//
// Normal akışta echo birkaç ms içinde gelir ve UI state'ine oradan girer.
// Echo kaybolur veya gecikirse (reconnect penceresi, paket kaybı) fallback
// timer dolar ve REST yanıtındaki mesaj doğrudan eklenir. Her iki yol da
// id bazlı dedup'tan geçtiği için hiçbir mesaj iki kez görünmez; kalıcı
// yazım kaynak doğruluk olduğu için hiçbir mesaj kaybolmaz.
//
// Bu paket client SDK'sının parçasıdır — server bu paketi import etmez.
package reconcile

import (
	"sort"
	"sync"
	"time"

	"github.com/ozanbudak/ikmesaj/models"
)

// DefaultFallbackTimeout, echo beklemek için önerilen süre.
const DefaultFallbackTimeout = 2 * time.Second

// Reconciler, tek bir konuşma görünümünün mesaj listesini yönetir.
// Liste her zaman CreatedAt'e göre artan sıradadır ve id bazında tekildir.
//
// Thread-safe: timer callback'leri ile event handler'lar yarışabilir.
type Reconciler struct {
	mu       sync.Mutex
	timeout  time.Duration
	messages []models.Message
	seen     map[string]bool        // eklenen mesaj id'leri
	pending  map[string]*time.Timer // gönderilmiş ama echo'su gelmemiş id'ler
	onInsert func(models.Message)   // her başarılı ekleme sonrası çağrılır (UI refresh)
	closed   bool
}

// New, yeni bir Reconciler oluşturur.
// timeout <= 0 ise DefaultFallbackTimeout kullanılır.
// onInsert nil olabilir.
func New(timeout time.Duration, onInsert func(models.Message)) *Reconciler {
	if timeout <= 0 {
		timeout = DefaultFallbackTimeout
	}
	return &Reconciler{
		timeout:  timeout,
		seen:     make(map[string]bool),
		pending:  make(map[string]*time.Timer),
		onInsert: onInsert,
	}
}

// TrackSend, başarılı bir REST gönderiminin sonucunu kaydeder ve fallback
// timer'ı başlatır. Echo timer dolmadan gelirse timer iptal edilir ve
// mesaj echo yolundan eklenir; aksi halde timer mesajı doğrudan ekler.
func (r *Reconciler) TrackSend(message models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.seen[message.ID] || r.pending[message.ID] != nil {
		return
	}

	msg := message
	r.pending[message.ID] = time.AfterFunc(r.timeout, func() {
		r.fallbackInsert(msg)
	})
}

// OnLiveMessage, WebSocket'ten gelen message_received event'ini işler.
// Kendi gönderimimizin echo'suysa bekleyen timer iptal edilir. Mesaj
// daha önce eklenmemişse listeye girer; eklenmişse (timer bizden önce
// davranmışsa ya da event replay'iyse) sessizce düşürülür.
func (r *Reconciler) OnLiveMessage(message models.Message) {
	r.mu.Lock()

	if timer, ok := r.pending[message.ID]; ok {
		timer.Stop()
		delete(r.pending, message.ID)
	}

	if r.closed || r.seen[message.ID] {
		r.mu.Unlock()
		return
	}
	r.insertLocked(message)
	callback := r.onInsert
	r.mu.Unlock()

	if callback != nil {
		callback(message)
	}
}

// fallbackInsert, timer dolduğunda çalışır. OnLiveMessage ile yarışı
// seen set'i çözer: echo timer'dan önce işlendiyse no-op.
func (r *Reconciler) fallbackInsert(message models.Message) {
	r.mu.Lock()

	delete(r.pending, message.ID)
	if r.closed || r.seen[message.ID] {
		r.mu.Unlock()
		return
	}
	r.insertLocked(message)
	callback := r.onInsert
	r.mu.Unlock()

	if callback != nil {
		callback(message)
	}
}

// Merge, reconnect sonrası full-refetch sonucunu mevcut listeye katar.
// Kopukluk sırasında kaçan mesajlar eklenir, zaten bilinenler düşürülür.
func (r *Reconciler) Merge(fetched []models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	added := false
	for _, message := range fetched {
		if r.seen[message.ID] {
			continue
		}
		r.seen[message.ID] = true
		r.messages = append(r.messages, message)
		added = true
	}

	if added {
		sort.SliceStable(r.messages, func(i, j int) bool {
			return r.messages[i].CreatedAt.Before(r.messages[j].CreatedAt)
		})
	}
}

// MarkRead, listedeki mesajların read flag'ini günceller
// (message_marked_read / conversation_read event'leri için).
func (r *Reconciler) MarkRead(messageIDs []string, readAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idSet := make(map[string]bool, len(messageIDs))
	for _, id := range messageIDs {
		idSet[id] = true
	}

	for i := range r.messages {
		if idSet[r.messages[i].ID] && !r.messages[i].Read {
			r.messages[i].Read = true
			t := readAt
			r.messages[i].ReadAt = &t
		}
	}
}

// Messages, mevcut listenin kopyasını döner (CreatedAt artan sırada).
func (r *Reconciler) Messages() []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Close, bekleyen tüm fallback timer'larını iptal eder. Görünüm
// kapandığında veya session sonlandığında çağrılmalıdır — mesaj başına
// timer sızıntısını önler.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for id, timer := range r.pending {
		timer.Stop()
		delete(r.pending, id)
	}
}

// insertLocked, mesajı CreatedAt sırasını koruyarak listeye ekler.
// r.mu kilitli çağrılmalıdır. Mesajlar çoğunlukla sona eklendiği için
// sondan geriye tarama pratikte O(1)'dir.
func (r *Reconciler) insertLocked(message models.Message) {
	r.seen[message.ID] = true

	i := len(r.messages)
	for i > 0 && r.messages[i-1].CreatedAt.After(message.CreatedAt) {
		i--
	}
	r.messages = append(r.messages, models.Message{})
	copy(r.messages[i+1:], r.messages[i:])
	r.messages[i] = message
}
