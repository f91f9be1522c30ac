// Package vcf, katılımcı listesini vCard 3.0 formatına serialize eder.
//
// Çıktı tarayıcıda indirilen .vcf dosyasıdır — telefon rehberi uygulamaları
// (iOS/Android rehber import'u) tarafından doğrudan okunur. Her katılımcı
// bağımsız bir VCARD bloğu olur, bloklar arka arkaya eklenir.
package vcf

import (
	"fmt"
	"strings"

	"github.com/nexora/vcfpool/models"
)

// ContentType, VCF dosyaları için MIME type.
const ContentType = "text/vcard; charset=utf-8"

// Build, katılımcı listesini tek bir vCard 3.0 dökümanına çevirir.
//
// FN satırındaki "NexOra" prefix'i kasıtlı: import edilen rehberde tüm
// havuz kişileri alfabetik olarak yan yana gruplanır ve kaynakları belli olur.
func Build(title string, participants []models.Participant) string {
	var b strings.Builder

	for _, p := range participants {
		b.WriteString("BEGIN:VCARD\r\n")
		b.WriteString("VERSION:3.0\r\n")
		fmt.Fprintf(&b, "FN:NexOra %s\r\n", escape(p.Name))
		fmt.Fprintf(&b, "N:%s;;;;\r\n", escape(p.Name))
		fmt.Fprintf(&b, "ORG:%s\r\n", escape(title))
		fmt.Fprintf(&b, "TEL;TYPE=CELL:%s\r\n", p.Phone)
		b.WriteString("END:VCARD\r\n")
	}

	return b.String()
}

// Filename, indirme header'ında kullanılan dosya adını döner.
func Filename(sessionID string) string {
	return fmt.Sprintf("NexOra_Pool_%s.vcf", sessionID)
}

// escape, vCard text value escaping'i uygular (RFC 2426 §2.4.2).
// Virgül, noktalı virgül ve backslash escape edilir; satır sonları \n olur.
func escape(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\r\n", "\\n",
		"\n", "\\n",
	)
	return r.Replace(s)
}
