package core

import (
	"fmt"
	"strings"

	"medcure.com/assistant/internal/store"
)

var systemInstructions = map[Language]string{
	LanguageVietnamese: strings.Join([]string{
		"Bạn là trợ lý AI của MedCure, một ứng dụng tra cứu thông tin y tế. Hãy trả lời câu hỏi của người dùng dựa trên thông tin được cung cấp bên dưới.",
		"Nếu thông tin không đủ để trả lời câu hỏi, hãy cho biết bạn không có đủ thông tin và gợi ý những câu hỏi khác liên quan.",
		"Hãy trả lời bằng tiếng Việt rõ ràng, chính xác và dễ hiểu. Không cần nêu nguồn hoặc giải thích cách bạn tìm thông tin.",
		"Không bịa đặt thông tin mà chỉ sử dụng thông tin được cung cấp. Nếu có nhiều nguồn thông tin, hãy kết hợp chúng để tạo câu trả lời tổng hợp.",
		"Trả lời ngắn gọn (tối đa 3-4 đoạn), đi thẳng vào vấn đề và dễ hiểu.",
	}, "\n"),
	LanguageEnglish: strings.Join([]string{
		"You are the AI assistant for MedCure, a medical information lookup app. Answer the user's question based on the information provided below.",
		"If the information is not sufficient to answer the question, state that you don't have enough information and suggest some related questions.",
		"Please answer in English clearly, accurately, and understandably. No need to cite sources or explain how you found the information.",
		"Do not fabricate information and only use the information provided. If there are multiple sources of information, combine them to create a synthesized answer.",
		"Keep your answer concise (maximum 3-4 paragraphs), straight to the point, and easy to understand.",
	}, "\n"),
}

type promptLabels struct {
	info, question, answer string
	disease, medicine      string
	name, description      string
	symptoms, causes       string
	prevention, usage      string
	sideEffects, maker     string
	noContext              string // format verb receives the question
}

var labels = map[Language]promptLabels{
	LanguageVietnamese: {
		info: "THÔNG TIN", question: "Câu hỏi", answer: "Trả lời",
		disease: "BỆNH", medicine: "THUỐC",
		name: "Tên", description: "Mô tả",
		symptoms: "Triệu chứng", causes: "Nguyên nhân",
		prevention: "Phòng ngừa", usage: "Cách dùng",
		sideEffects: "Tác dụng phụ", maker: "Nhà sản xuất",
		noContext: "Tôi không có thông tin cụ thể để trả lời câu hỏi của bạn về \"%s\". Vui lòng thử lại với một câu hỏi khác hoặc cung cấp thêm chi tiết.",
	},
	LanguageEnglish: {
		info: "INFORMATION", question: "Question", answer: "Answer",
		disease: "DISEASE", medicine: "MEDICINE",
		name: "Name", description: "Description",
		symptoms: "Symptoms", causes: "Causes",
		prevention: "Prevention", usage: "Usage",
		sideEffects: "Side Effects", maker: "Manufacturer",
		noContext: "I don't have specific information to answer your question about \"%s\". Please try again with a different question or provide more details.",
	},
}

func labelsFor(lang Language) promptLabels {
	if l, ok := labels[lang]; ok {
		return l
	}
	return labels[DefaultLanguage]
}

// localized picks the value for lang and falls back to the other language
// when it is empty.
func localized(lang Language, en, vi string) string {
	primary, other := en, vi
	if lang == LanguageVietnamese {
		primary, other = vi, en
	}
	if strings.TrimSpace(primary) != "" {
		return primary
	}
	return other
}

func writeField(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}

// BuildContext renders one labeled section per result. Fields missing in
// both languages are left out.
func BuildContext(results []DetailedResult, lang Language) string {
	l := labelsFor(lang)
	var b strings.Builder
	for i, r := range results {
		switch r.Entry.Type {
		case store.ContentTypeDisease:
			d := r.Entry.Disease
			if d == nil {
				continue
			}
			fmt.Fprintf(&b, "\n--- %s %d ---\n", l.disease, i+1)
			writeField(&b, l.name, localized(lang, d.Name, d.NameVI))
			writeField(&b, l.description, localized(lang, d.Description, d.DescriptionVI))
			writeField(&b, l.symptoms, localized(lang, d.Symptoms, d.SymptomsVI))
			writeField(&b, l.causes, localized(lang, d.Causes, d.CausesVI))
			writeField(&b, l.prevention, localized(lang, d.Prevention, d.PreventionVI))
		case store.ContentTypeMedicine:
			m := r.Entry.Medicine
			if m == nil {
				continue
			}
			fmt.Fprintf(&b, "\n--- %s %d ---\n", l.medicine, i+1)
			writeField(&b, l.name, localized(lang, m.Name, m.NameVI))
			writeField(&b, l.description, localized(lang, m.Description, m.DescriptionVI))
			writeField(&b, l.usage, localized(lang, m.Usage, m.UsageVI))
			writeField(&b, l.sideEffects, localized(lang, m.SideEffects, m.SideEffectsVI))
			writeField(&b, l.maker, localized(lang, m.Manufacturer, m.ManufacturerVI))
		}
	}
	return b.String()
}

// BuildPrompt assembles the generation prompt. An empty context drops the
// information block and pre-fills the answer with a "no specific
// information" stub.
func BuildPrompt(question, context string, lang Language) string {
	l := labelsFor(lang)
	system := systemInstructions[lang]
	if system == "" {
		system = systemInstructions[DefaultLanguage]
	}

	if strings.TrimSpace(context) == "" {
		stub := fmt.Sprintf(l.noContext, question)
		return fmt.Sprintf("%s\n\n%s: %s\n\n%s: %s", system, l.question, question, l.answer, stub)
	}
	return fmt.Sprintf("%s\n\n%s:\n%s\n\n%s: %s\n\n%s:", system, l.info, context, l.question, question, l.answer)
}
