package models

// UnreadSummary, bir katılımcının tüm konuşmalarındaki okunmamış mesaj
// sayılarını taşır. Total, PerConversation değerlerinin toplamıdır.
//
// Invariant: her sayaç, o konuşmada sender_role != katılımcının rolü ve
// read = false olan mesaj sayısına eşittir (canlı event sonrası sınırlı
// bir eventual-consistency penceresi hariç). Kanonik kaynak her zaman
// store üzerinden recompute'tur.
type UnreadSummary struct {
	PerConversation map[string]int `json:"per_conversation"`
	Total           int            `json:"total"`
}
