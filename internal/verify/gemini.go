package verify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// Delegate compares two face images and answers in the verdict grammar.
type Delegate interface {
	Compare(ctx context.Context, reference, probe []byte) (string, error)
}

const comparePrompt = `Bạn là một chuyên gia nhận dạng khuôn mặt. Hãy so sánh hai bức ảnh sau và xác định xem chúng có phải là cùng một người hay không.

NHIỆM VỤ:
1. Phân tích kỹ lưỡng các đặc điểm khuôn mặt trong cả hai ảnh
2. So sánh: hình dáng mặt, mắt, mũi, miệng, tai, tổng thể gương mặt
3. Đưa ra kết luận có phải cùng một người hay không
4. Cho điểm similarity từ 0-100 (0 = hoàn toàn khác người, 100 = chắc chắn cùng người)
5. Đánh giá mức độ tin cậy: HIGH/MEDIUM/LOW

LƯU Ý:
- Bỏ qua sự khác biệt về ánh sáng, góc chụp, chất lượng ảnh
- Tập trung vào các đặc điểm sinh trắc học cơ bản
- Nếu không thấy rõ mặt người trong ảnh nào thì báo LOW confidence

ĐỊNH DẠNG TRẢ LỜI:
RESULT: [SAME/DIFFERENT]
SIMILARITY: [0-100]
CONFIDENCE: [HIGH/MEDIUM/LOW]
ANALYSIS: [Giải thích chi tiết lý do so sánh, ít nhất 2-3 câu về các đặc điểm cụ thể]

Hãy phân tích và trả lời:`

// GeminiDelegate asks a Gemini model to compare a reference and a probe image.
type GeminiDelegate struct {
	client    *genai.Client
	modelName string
	limiter   *rate.Limiter
}

func NewGeminiDelegate(ctx context.Context, apiKey, modelName string, rps float64) (*GeminiDelegate, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if rps <= 0 {
		rps = 1
	}
	return &GeminiDelegate{
		client:    client,
		modelName: modelName,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

func (g *GeminiDelegate) Compare(ctx context.Context, reference, probe []byte) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	model := g.client.GenerativeModel(g.modelName)
	res, err := model.GenerateContent(ctx,
		genai.Text(comparePrompt),
		genai.ImageData(imageFormat(reference), reference),
		genai.ImageData(imageFormat(probe), probe),
	)
	if err != nil {
		return "", err
	}
	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no response from Gemini API")
	}

	var sb strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("unexpected response format from Gemini API")
	}
	return sb.String(), nil
}

// imageFormat sniffs the MIME subtype genai.ImageData expects, defaulting to jpeg.
func imageFormat(data []byte) string {
	ct := http.DetectContentType(data)
	if format, ok := strings.CutPrefix(ct, "image/"); ok {
		return format
	}
	return "jpeg"
}

func (g *GeminiDelegate) Close() error {
	return g.client.Close()
}
